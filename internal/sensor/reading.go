package sensor

import "time"

// SensorData is one temperature+humidity sample as produced by acquisition,
// before it is tied to a device at the ingestion boundary.
type SensorData struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	CapturedAt  time.Time `json:"capturedAt"`
}
