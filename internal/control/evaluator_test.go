package control

import (
	"testing"

	"github.com/smukkama/env-monitor/internal/store"
)

var testThresholds = Thresholds{Temperature: 30, Humidity: 70}

func TestEvaluateNominalReading(t *testing.T) {
	r := store.Reading{DeviceID: "esp32-01", Ts: 1000, Temperature: 27.5, Humidity: 60}

	alerts, decision := Evaluate(r, testThresholds)

	if len(alerts) != 0 {
		t.Errorf("Expected no alerts for nominal reading, got %d", len(alerts))
	}
	if decision.Relay {
		t.Error("Expected relay off for nominal reading")
	}
	if decision.Reason != store.ReasonWithinThreshold {
		t.Errorf("Expected reason %q, got %q", store.ReasonWithinThreshold, decision.Reason)
	}
	if decision.Reading.Ts != r.Ts {
		t.Errorf("Expected decision to report the evaluated reading, got ts=%d", decision.Reading.Ts)
	}
}

func TestEvaluateHumidityCriticallyHigh(t *testing.T) {
	r := store.Reading{Ts: 1000, Temperature: 27, Humidity: 85.5}

	alerts, decision := Evaluate(r, testThresholds)

	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Title != "Humidity is critically high." {
		t.Errorf("Unexpected alert title: %q", alerts[0].Title)
	}
	if alerts[0].Value != "85.50%" {
		t.Errorf("Unexpected alert value: %q", alerts[0].Value)
	}
	if alerts[0].Severity != store.SeverityWarning {
		t.Errorf("Expected warning severity, got %q", alerts[0].Severity)
	}
	if !decision.Relay || decision.Reason != store.ReasonCriticalHigh {
		t.Errorf("Expected relay on with reason %q, got relay=%v reason=%q",
			store.ReasonCriticalHigh, decision.Relay, decision.Reason)
	}
}

func TestEvaluateHumidityCriticallyLow(t *testing.T) {
	// Critical-low boundary is threshold * 0.5 = 35.
	r := store.Reading{Ts: 1000, Temperature: 27, Humidity: 34.99}

	alerts, decision := Evaluate(r, testThresholds)

	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Title != "Humidity is critically low." {
		t.Errorf("Unexpected alert title: %q", alerts[0].Title)
	}
	if alerts[0].Severity != store.SeverityError {
		t.Errorf("Expected error severity, got %q", alerts[0].Severity)
	}
	if !decision.Relay || decision.Reason != store.ReasonCriticalLow {
		t.Errorf("Expected relay on with reason %q, got relay=%v reason=%q",
			store.ReasonCriticalLow, decision.Relay, decision.Reason)
	}
}

func TestEvaluateTemperatureCriticallyHigh(t *testing.T) {
	r := store.Reading{Ts: 1000, Temperature: 34.25, Humidity: 60}

	alerts, decision := Evaluate(r, testThresholds)

	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Title != "Temperature is critically high." {
		t.Errorf("Unexpected alert title: %q", alerts[0].Title)
	}
	if alerts[0].Value != "34.25°C" {
		t.Errorf("Unexpected alert value: %q", alerts[0].Value)
	}
	if !decision.Relay || decision.Reason != store.ReasonCriticalHigh {
		t.Errorf("Expected relay on with reason %q, got relay=%v reason=%q",
			store.ReasonCriticalHigh, decision.Relay, decision.Reason)
	}
}

func TestEvaluateTemperatureCriticallyLow(t *testing.T) {
	// Critical-low boundary is threshold * 0.5 = 15.
	r := store.Reading{Ts: 1000, Temperature: 14, Humidity: 60}

	alerts, decision := Evaluate(r, testThresholds)

	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Title != "Temperature is critically low." {
		t.Errorf("Unexpected alert title: %q", alerts[0].Title)
	}
	if alerts[0].Severity != store.SeverityError {
		t.Errorf("Expected error severity, got %q", alerts[0].Severity)
	}
	if !decision.Relay || decision.Reason != store.ReasonCriticalLow {
		t.Errorf("Expected relay on with reason %q, got relay=%v reason=%q",
			store.ReasonCriticalLow, decision.Relay, decision.Reason)
	}
}

func TestEvaluateBothMetricsCritical(t *testing.T) {
	r := store.Reading{Ts: 1000, Temperature: 35, Humidity: 20}

	alerts, decision := Evaluate(r, testThresholds)

	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts (one per metric), got %d", len(alerts))
	}
	// Critical-high wins when both conditions hold across metrics.
	if decision.Reason != store.ReasonCriticalHigh {
		t.Errorf("Expected reason %q, got %q", store.ReasonCriticalHigh, decision.Reason)
	}
}

func TestEvaluateBoundaryValuesAreNominal(t *testing.T) {
	// Exactly at threshold and exactly at threshold*0.5 are both in-band:
	// comparisons are strict.
	cases := []store.Reading{
		{Ts: 1, Temperature: 30, Humidity: 60},
		{Ts: 2, Temperature: 15, Humidity: 60},
		{Ts: 3, Temperature: 27, Humidity: 70},
		{Ts: 4, Temperature: 27, Humidity: 35},
	}

	for _, r := range cases {
		alerts, decision := Evaluate(r, testThresholds)
		if len(alerts) != 0 {
			t.Errorf("Reading ts=%d: expected no alerts at boundary, got %d", r.Ts, len(alerts))
		}
		if decision.Relay {
			t.Errorf("Reading ts=%d: expected relay off at boundary", r.Ts)
		}
	}
}

func TestEvaluateBatchFirstCriticalIsSticky(t *testing.T) {
	readings := []store.Reading{
		{Ts: 100, Temperature: 27, Humidity: 60},
		{Ts: 200, Temperature: 35, Humidity: 60}, // critical high
		{Ts: 300, Temperature: 27, Humidity: 60}, // nominal, must not flip relay back
	}

	alerts, decision := EvaluateBatch(readings, testThresholds)

	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert from the critical reading, got %d", len(alerts))
	}
	if !decision.Relay {
		t.Error("Expected relay on: first critical reading is sticky")
	}
	if decision.Reason != store.ReasonCriticalHigh {
		t.Errorf("Expected reason %q, got %q", store.ReasonCriticalHigh, decision.Reason)
	}
	if decision.Reading.Ts != 200 {
		t.Errorf("Expected decision to report the critical reading (ts=200), got ts=%d", decision.Reading.Ts)
	}
}

func TestEvaluateBatchAllNominalReportsLastElement(t *testing.T) {
	// Array order, not timestamp order, determines the reported reading.
	readings := []store.Reading{
		{Ts: 300, Temperature: 27, Humidity: 60},
		{Ts: 100, Temperature: 28, Humidity: 62},
	}

	alerts, decision := EvaluateBatch(readings, testThresholds)

	if len(alerts) != 0 {
		t.Errorf("Expected no alerts, got %d", len(alerts))
	}
	if decision.Relay {
		t.Error("Expected relay off for fully nominal batch")
	}
	if decision.Reason != store.ReasonWithinThreshold {
		t.Errorf("Expected reason %q, got %q", store.ReasonWithinThreshold, decision.Reason)
	}
	if decision.Reading.Ts != 100 {
		t.Errorf("Expected last array element (ts=100) reported, got ts=%d", decision.Reading.Ts)
	}
}

func TestEvaluateBatchCollectsAlertsFromEveryReading(t *testing.T) {
	readings := []store.Reading{
		{Ts: 100, Temperature: 35, Humidity: 60}, // 1 alert
		{Ts: 200, Temperature: 14, Humidity: 20}, // 2 alerts
		{Ts: 300, Temperature: 27, Humidity: 60}, // none
	}

	alerts, decision := EvaluateBatch(readings, testThresholds)

	if len(alerts) != 3 {
		t.Errorf("Expected 3 alerts across the batch, got %d", len(alerts))
	}
	// First critical reading wins even though a later one is also critical.
	if decision.Reading.Ts != 100 {
		t.Errorf("Expected first critical reading (ts=100) reported, got ts=%d", decision.Reading.Ts)
	}
}

func TestEvaluateBatchEmpty(t *testing.T) {
	alerts, decision := EvaluateBatch(nil, testThresholds)

	if len(alerts) != 0 {
		t.Errorf("Expected no alerts for empty batch, got %d", len(alerts))
	}
	if decision.Relay {
		t.Error("Expected relay off for empty batch")
	}
	if decision.Reason != store.ReasonWithinThreshold {
		t.Errorf("Expected reason %q, got %q", store.ReasonWithinThreshold, decision.Reason)
	}
}
