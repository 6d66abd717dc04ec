package queue

import (
	"encoding/json"
	"fmt"

	"github.com/smukkama/env-monitor/internal/control"
	"github.com/smukkama/env-monitor/internal/store"
)

// AlertEvent is the wire schema for one alert on the event bus, carrying the
// relay decision that accompanied it.
type AlertEvent struct {
	DeviceID      string `json:"deviceId"`
	Ts            int64  `json:"ts"`
	Title         string `json:"title"`
	Value         string `json:"value"`
	Severity      string `json:"severity"`
	Relay         bool   `json:"relay"`
	ControlReason string `json:"controlReason"`
}

// EncodeAlertEvent builds the bus payload for an alert and its decision.
func EncodeAlertEvent(deviceID string, alert store.AlertRecord, decision control.Decision) ([]byte, error) {
	event := AlertEvent{
		DeviceID:      deviceID,
		Ts:            alert.Ts,
		Title:         alert.Title,
		Value:         alert.Value,
		Severity:      alert.Severity,
		Relay:         decision.Relay,
		ControlReason: decision.Reason,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert event: %w", err)
	}
	return data, nil
}

// DecodeAlertEvent parses a bus payload.
func DecodeAlertEvent(data []byte) (*AlertEvent, error) {
	var event AlertEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode alert event: %w", err)
	}
	return &event, nil
}
