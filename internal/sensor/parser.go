package sensor

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"time"
)

// ParseStatus classifies what the parser made of a line.
type ParseStatus int

const (
	// StatusParsed means the line produced a reading.
	StatusParsed ParseStatus = iota
	// StatusNoise means the line matched a known-benign diagnostic pattern
	// and was discarded without error.
	StatusNoise
	// StatusUnrecognized means no strategy handled the line; callers should
	// surface a diagnostic.
	StatusUnrecognized
)

// ParseOutcome is the result of classifying one line. Reading is set only
// when Status is StatusParsed.
type ParseOutcome struct {
	Status  ParseStatus
	Reading SensorData
}

var (
	textTempPattern     = regexp.MustCompile(`(?i)temp(?:erature)?\s*[:=]\s*(-?\d+(?:\.\d+)?)`)
	textHumidityPattern = regexp.MustCompile(`(?i)humidity\s*[:=]\s*(\d+(?:\.\d+)?)`)
	noisePattern        = regexp.MustCompile(`(?i)voltage`)
)

// capturedAtLayouts are tried in order when a structured payload carries a
// timestamp string.
var capturedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parser turns one trimmed, non-empty serial line into a reading using an
// ordered strategy chain: structured (JSON) payloads win over free-text
// firmware output, known noise is silenced, everything else is unrecognized.
type Parser struct {
	now func() time.Time
}

// NewParser creates a parser using the wall clock for capture times.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse classifies one line. The caller trims and drops empty lines.
func (p *Parser) Parse(line string) ParseOutcome {
	if reading, ok := p.parseStructured(line); ok {
		return ParseOutcome{Status: StatusParsed, Reading: reading}
	}

	if reading, ok := p.parseFreeText(line); ok {
		return ParseOutcome{Status: StatusParsed, Reading: reading}
	}

	if noisePattern.MatchString(line) {
		return ParseOutcome{Status: StatusNoise}
	}

	return ParseOutcome{Status: StatusUnrecognized}
}

// parseStructured accepts a single-line JSON object with numeric
// temperature|temp|t and humidity|hum|h fields (first present wins, in that
// order) and an optional capturedAt|timestamp date string.
func (p *Parser) parseStructured(line string) (SensorData, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return SensorData{}, false
	}

	temperature, ok := firstNumber(payload, "temperature", "temp", "t")
	if !ok {
		return SensorData{}, false
	}
	humidity, ok := firstNumber(payload, "humidity", "hum", "h")
	if !ok {
		return SensorData{}, false
	}

	capturedAt := p.now()
	if raw, present := firstValue(payload, "capturedAt", "timestamp"); present {
		if ts, parsed := parseCapturedAt(raw); parsed {
			capturedAt = ts
		}
	}

	return SensorData{
		Temperature: temperature,
		Humidity:    humidity,
		CapturedAt:  capturedAt,
	}, true
}

// parseFreeText matches legacy plain-text firmware output. Both metrics must
// be present; free text carries no timestamp, so capture time is the wall
// clock.
func (p *Parser) parseFreeText(line string) (SensorData, bool) {
	tempMatch := textTempPattern.FindStringSubmatch(line)
	humidityMatch := textHumidityPattern.FindStringSubmatch(line)
	if tempMatch == nil || humidityMatch == nil {
		return SensorData{}, false
	}

	temperature, err := strconv.ParseFloat(tempMatch[1], 64)
	if err != nil || !isFinite(temperature) {
		return SensorData{}, false
	}
	humidity, err := strconv.ParseFloat(humidityMatch[1], 64)
	if err != nil || !isFinite(humidity) {
		return SensorData{}, false
	}

	return SensorData{
		Temperature: temperature,
		Humidity:    humidity,
		CapturedAt:  p.now(),
	}, true
}

// firstValue resolves the first alias key carrying a value. A JSON null
// counts as absent, so coalescing falls through to the next alias.
func firstValue(payload map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := payload[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstNumber resolves the first present key to a finite number; a numeric
// string counts, anything else rejects the line for this strategy.
func firstNumber(payload map[string]interface{}, keys ...string) (float64, bool) {
	raw, ok := firstValue(payload, keys...)
	if !ok {
		return 0, false
	}
	return toNumber(raw)
}

func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if isFinite(v) {
			return v, true
		}
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err == nil && isFinite(parsed) {
			return parsed, true
		}
	}
	return 0, false
}

func parseCapturedAt(value interface{}) (time.Time, bool) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range capturedAtLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
