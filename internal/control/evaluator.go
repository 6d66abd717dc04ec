// Package control holds the pure threshold-evaluation and relay-decision
// logic. Nothing here touches I/O; the ingest service applies the results.
package control

import (
	"fmt"

	"github.com/smukkama/env-monitor/internal/store"
)

// criticalLowFactor scales a threshold down to its critical-low boundary.
const criticalLowFactor = 0.5

// Thresholds are the process-wide critical-high boundaries per metric. The
// critical-low boundary for each metric is threshold * 0.5.
type Thresholds struct {
	Temperature float64
	Humidity    float64
}

// Decision is the relay-control outcome for a reading or a batch. Reading is
// the sample the decision reports against (for batches, the first critical
// reading, or the last element when none is critical).
type Decision struct {
	Relay   bool
	Reason  string
	Reading store.Reading
}

// Evaluate maps one reading to its alerts and relay decision.
func Evaluate(r store.Reading, th Thresholds) ([]store.AlertRecord, Decision) {
	return evaluateAlerts(r, th), decide(r, th)
}

// EvaluateBatch evaluates readings in their given order. The first critical
// reading turns the relay on and is sticky: later non-critical readings in
// the same batch do not turn it back off. When no reading is critical the
// relay is reported off against the last element of the batch.
func EvaluateBatch(readings []store.Reading, th Thresholds) ([]store.AlertRecord, Decision) {
	if len(readings) == 0 {
		return nil, Decision{Reason: store.ReasonWithinThreshold}
	}

	var alerts []store.AlertRecord
	var critical *Decision

	for _, r := range readings {
		alerts = append(alerts, evaluateAlerts(r, th)...)

		if critical == nil {
			if d := decide(r, th); d.Relay {
				critical = &d
			}
		}
	}

	if critical != nil {
		return alerts, *critical
	}

	last := readings[len(readings)-1]
	return alerts, Decision{
		Relay:   false,
		Reason:  store.ReasonWithinThreshold,
		Reading: last,
	}
}

// evaluateAlerts checks each metric independently; one reading yields zero,
// one or two alerts.
func evaluateAlerts(r store.Reading, th Thresholds) []store.AlertRecord {
	var alerts []store.AlertRecord

	if r.Humidity < th.Humidity*criticalLowFactor {
		alerts = append(alerts, store.AlertRecord{
			DeviceID: r.DeviceID,
			Ts:       r.Ts,
			Title:    "Humidity is critically low.",
			Value:    fmt.Sprintf("%.2f%%", r.Humidity),
			Severity: store.SeverityError,
		})
	} else if r.Humidity > th.Humidity {
		alerts = append(alerts, store.AlertRecord{
			DeviceID: r.DeviceID,
			Ts:       r.Ts,
			Title:    "Humidity is critically high.",
			Value:    fmt.Sprintf("%.2f%%", r.Humidity),
			Severity: store.SeverityWarning,
		})
	}

	if r.Temperature < th.Temperature*criticalLowFactor {
		alerts = append(alerts, store.AlertRecord{
			DeviceID: r.DeviceID,
			Ts:       r.Ts,
			Title:    "Temperature is critically low.",
			Value:    fmt.Sprintf("%.2f°C", r.Temperature),
			Severity: store.SeverityError,
		})
	} else if r.Temperature > th.Temperature {
		alerts = append(alerts, store.AlertRecord{
			DeviceID: r.DeviceID,
			Ts:       r.Ts,
			Title:    "Temperature is critically high.",
			Value:    fmt.Sprintf("%.2f°C", r.Temperature),
			Severity: store.SeverityWarning,
		})
	}

	return alerts
}

func decide(r store.Reading, th Thresholds) Decision {
	criticalHigh := r.Temperature > th.Temperature || r.Humidity > th.Humidity
	criticalLow := r.Temperature < th.Temperature*criticalLowFactor ||
		r.Humidity < th.Humidity*criticalLowFactor

	// High takes priority when both hold (possible across the two metrics).
	switch {
	case criticalHigh:
		return Decision{Relay: true, Reason: store.ReasonCriticalHigh, Reading: r}
	case criticalLow:
		return Decision{Relay: true, Reason: store.ReasonCriticalLow, Reading: r}
	default:
		return Decision{Relay: false, Reason: store.ReasonWithinThreshold, Reading: r}
	}
}
