package store

import (
	"context"
	"errors"
	"time"
)

// Alert severities
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Control reasons recorded alongside a relay decision
const (
	ReasonCriticalHigh    = "critical-high"
	ReasonCriticalLow     = "critical-low"
	ReasonWithinThreshold = "within-threshold"
)

// DefaultQueryLimit is applied when a range query does not specify a limit.
const DefaultQueryLimit = 50

var ErrNegativeTimestamp = errors.New("reading timestamp must be non-negative")

// Reading is one temperature+humidity sample tied to a device and a
// sensor-supplied millisecond timestamp. Immutable once stored. Ts is not
// validated for monotonicity; queries sort by Ts, not insertion order.
type Reading struct {
	DeviceID    string    `json:"deviceId"`
	Ts          int64     `json:"ts"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// AlertRecord is one alert produced by evaluating a reading. A single
// reading yields zero, one or two alerts (humidity and temperature are
// evaluated independently).
type AlertRecord struct {
	DeviceID string `json:"deviceId"`
	Ts       int64  `json:"ts"`
	Title    string `json:"title"`
	Value    string `json:"value"`
	Severity string `json:"severity"`
}

// ControlState is the per-device record holding the current relay decision
// and its rationale. It is a decision cache derived from the most recent
// ingest, not an independent source of truth.
type ControlState struct {
	DeviceID      string  `json:"deviceId"`
	Relay         bool    `json:"relay"`
	Auto          bool    `json:"auto"`
	AutoTs        *int64  `json:"autoTs"`
	ControlReason string  `json:"controlReason"`
	Threshold     float64 `json:"threshold"`
}

// ControlUpdate is a partial control-state update; nil fields are left
// untouched.
type ControlUpdate struct {
	Relay         *bool
	Auto          *bool
	AutoTs        *int64
	ControlReason *string
	Threshold     *float64
}

// Apply merges the update into the state in place.
func (u ControlUpdate) Apply(state *ControlState) {
	if u.Relay != nil {
		state.Relay = *u.Relay
	}
	if u.Auto != nil {
		state.Auto = *u.Auto
	}
	if u.AutoTs != nil {
		state.AutoTs = u.AutoTs
	}
	if u.ControlReason != nil {
		state.ControlReason = *u.ControlReason
	}
	if u.Threshold != nil {
		state.Threshold = *u.Threshold
	}
}

// Range bounds a query by millisecond timestamps. Nil means unbounded.
// Bounds are inclusive.
type Range struct {
	From *int64
	To   *int64
}

// Contains reports whether ts falls inside the range.
func (r Range) Contains(ts int64) bool {
	if r.From != nil && ts < *r.From {
		return false
	}
	if r.To != nil && ts > *r.To {
		return false
	}
	return true
}

// TelemetryStore is the persistence contract for the telemetry pipeline:
// append-only reading/alert logs keyed by device and time, an O(1) latest
// reading cache and a per-device control record.
//
// Lookups return (nil, nil) when the device has no record. Appends for one
// device are stored in call order; range queries sort ascending by Ts and
// return the most recent `limit` entries within the range.
type TelemetryStore interface {
	AppendReading(ctx context.Context, deviceID string, r Reading) (string, error)
	AppendReadingsBatch(ctx context.Context, deviceID string, readings []Reading) ([]string, error)
	AppendAlert(ctx context.Context, deviceID string, a AlertRecord) (string, error)

	QueryReadings(ctx context.Context, deviceID string, limit int, rng Range) ([]Reading, error)
	QueryAlerts(ctx context.Context, deviceID string, limit int, rng Range) ([]AlertRecord, error)

	// LatestReading reads the per-device summary cache, not the log.
	LatestReading(ctx context.Context, deviceID string) (*Reading, error)

	GetControlState(ctx context.Context, deviceID string) (*ControlState, error)
	SetControlState(ctx context.Context, deviceID string, update ControlUpdate) error
	// EnsureControlState creates the control record if absent and returns the
	// live record. An existing record is never overwritten.
	EnsureControlState(ctx context.Context, deviceID string, defaults ControlState) (*ControlState, error)
}

// maxTsReading returns the element with the highest Ts, preferring the
// earlier element on ties (matches the summary update contract for batches).
func maxTsReading(readings []Reading) Reading {
	last := readings[0]
	for _, r := range readings[1:] {
		if r.Ts > last.Ts {
			last = r
		}
	}
	return last
}
