package store

import (
	"context"
	"testing"
)

func i64(v int64) *int64      { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func TestAppendAndQueryReadings(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	// Out of timestamp order on purpose.
	for _, ts := range []int64{300, 100, 200} {
		key, err := m.AppendReading(ctx, "dev-1", Reading{Ts: ts, Temperature: 25, Humidity: 50})
		if err != nil {
			t.Fatalf("AppendReading failed: %v", err)
		}
		if key == "" {
			t.Error("Expected a non-empty storage key")
		}
	}

	readings, err := m.QueryReadings(ctx, "dev-1", 0, Range{})
	if err != nil {
		t.Fatalf("QueryReadings failed: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(readings))
	}
	for i, want := range []int64{100, 200, 300} {
		if readings[i].Ts != want {
			t.Errorf("Position %d: expected ts %d, got %d", i, want, readings[i].Ts)
		}
	}
	if readings[0].DeviceID != "dev-1" {
		t.Errorf("Expected device id stamped on stored reading, got %q", readings[0].DeviceID)
	}
}

func TestQueryReadingsRangeBoundsInclusive(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	for _, ts := range []int64{100, 200, 300, 400} {
		m.AppendReading(ctx, "dev-1", Reading{Ts: ts})
	}

	readings, err := m.QueryReadings(ctx, "dev-1", 0, Range{From: i64(200), To: i64(300)})
	if err != nil {
		t.Fatalf("QueryReadings failed: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("Expected 2 readings in [200,300], got %d", len(readings))
	}
	if readings[0].Ts != 200 || readings[1].Ts != 300 {
		t.Errorf("Expected ts 200 and 300, got %d and %d", readings[0].Ts, readings[1].Ts)
	}
}

func TestQueryReadingsLimitKeepsMostRecent(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	for ts := int64(1); ts <= 10; ts++ {
		m.AppendReading(ctx, "dev-1", Reading{Ts: ts})
	}

	readings, err := m.QueryReadings(ctx, "dev-1", 3, Range{})
	if err != nil {
		t.Fatalf("QueryReadings failed: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(readings))
	}
	// Most recent 3, still ascending.
	for i, want := range []int64{8, 9, 10} {
		if readings[i].Ts != want {
			t.Errorf("Position %d: expected ts %d, got %d", i, want, readings[i].Ts)
		}
	}
}

func TestQueryReadingsDefaultLimit(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	for ts := int64(1); ts <= DefaultQueryLimit+10; ts++ {
		m.AppendReading(ctx, "dev-1", Reading{Ts: ts})
	}

	readings, err := m.QueryReadings(ctx, "dev-1", 0, Range{})
	if err != nil {
		t.Fatalf("QueryReadings failed: %v", err)
	}
	if len(readings) != DefaultQueryLimit {
		t.Errorf("Expected default limit of %d readings, got %d", DefaultQueryLimit, len(readings))
	}
	if readings[0].Ts != 11 {
		t.Errorf("Expected oldest returned ts 11, got %d", readings[0].Ts)
	}
}

func TestQueryReadingsUnknownDevice(t *testing.T) {
	m := NewMemoryStore()

	readings, err := m.QueryReadings(context.Background(), "ghost", 0, Range{})
	if err != nil {
		t.Fatalf("QueryReadings failed: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("Expected empty result for unknown device, got %d", len(readings))
	}
}

func TestAppendReadingRejectsNegativeTimestamp(t *testing.T) {
	m := NewMemoryStore()

	if _, err := m.AppendReading(context.Background(), "dev-1", Reading{Ts: -1}); err != ErrNegativeTimestamp {
		t.Errorf("Expected ErrNegativeTimestamp, got %v", err)
	}
}

func TestAppendReadingUpdatesLatest(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	latest, err := m.LatestReading(ctx, "dev-1")
	if err != nil {
		t.Fatalf("LatestReading failed: %v", err)
	}
	if latest != nil {
		t.Fatal("Expected nil latest before any append")
	}

	m.AppendReading(ctx, "dev-1", Reading{Ts: 100, Temperature: 20})
	m.AppendReading(ctx, "dev-1", Reading{Ts: 50, Temperature: 25})

	latest, err = m.LatestReading(ctx, "dev-1")
	if err != nil {
		t.Fatalf("LatestReading failed: %v", err)
	}
	// Single appends overwrite in call order; the cache follows the calls.
	if latest.Ts != 50 {
		t.Errorf("Expected latest ts 50 (last append), got %d", latest.Ts)
	}
}

func TestAppendReadingsBatchLatestIsMaxTs(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	keys, err := m.AppendReadingsBatch(ctx, "dev-1", []Reading{
		{Ts: 100, Temperature: 21},
		{Ts: 50, Temperature: 22},
	})
	if err != nil {
		t.Fatalf("AppendReadingsBatch failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(keys))
	}

	latest, err := m.LatestReading(ctx, "dev-1")
	if err != nil {
		t.Fatalf("LatestReading failed: %v", err)
	}
	if latest.Ts != 100 {
		t.Errorf("Expected summary to hold the max-ts element (100), got %d", latest.Ts)
	}
}

func TestAppendReadingsBatchRejectsNegativeTimestamp(t *testing.T) {
	m := NewMemoryStore()

	_, err := m.AppendReadingsBatch(context.Background(), "dev-1", []Reading{
		{Ts: 100},
		{Ts: -5},
	})
	if err != ErrNegativeTimestamp {
		t.Errorf("Expected ErrNegativeTimestamp, got %v", err)
	}

	// Validation happens before any write.
	readings, _ := m.QueryReadings(context.Background(), "dev-1", 0, Range{})
	if len(readings) != 0 {
		t.Errorf("Expected no partial writes from a rejected batch, got %d", len(readings))
	}
}

func TestAppendAndQueryAlerts(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	m.AppendAlert(ctx, "dev-1", AlertRecord{Ts: 200, Title: "Temperature is critically high.", Severity: SeverityWarning})
	m.AppendAlert(ctx, "dev-1", AlertRecord{Ts: 100, Title: "Humidity is critically low.", Severity: SeverityError})

	alerts, err := m.QueryAlerts(ctx, "dev-1", 0, Range{})
	if err != nil {
		t.Fatalf("QueryAlerts failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].Ts != 100 || alerts[1].Ts != 200 {
		t.Errorf("Expected ascending ts order, got %d then %d", alerts[0].Ts, alerts[1].Ts)
	}
}

func TestControlStateLifecycle(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	state, err := m.GetControlState(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetControlState failed: %v", err)
	}
	if state != nil {
		t.Fatal("Expected nil control state before initialization")
	}

	defaults := ControlState{Relay: false, Auto: false, ControlReason: ReasonWithinThreshold, Threshold: 30}
	created, err := m.EnsureControlState(ctx, "dev-1", defaults)
	if err != nil {
		t.Fatalf("EnsureControlState failed: %v", err)
	}
	if created.DeviceID != "dev-1" || created.Threshold != 30 {
		t.Errorf("Unexpected created state: %+v", created)
	}

	// A second ensure with different defaults must not overwrite.
	again, err := m.EnsureControlState(ctx, "dev-1", ControlState{Threshold: 99})
	if err != nil {
		t.Fatalf("EnsureControlState failed: %v", err)
	}
	if again.Threshold != 30 {
		t.Errorf("Expected existing record preserved (threshold 30), got %v", again.Threshold)
	}
}

func TestSetControlStatePartialMerge(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	m.EnsureControlState(ctx, "dev-1", ControlState{
		Relay: false, Auto: true, ControlReason: ReasonWithinThreshold, Threshold: 30,
	})

	err := m.SetControlState(ctx, "dev-1", ControlUpdate{
		Relay:         boolPtr(true),
		ControlReason: strPtr(ReasonCriticalHigh),
	})
	if err != nil {
		t.Fatalf("SetControlState failed: %v", err)
	}

	state, _ := m.GetControlState(ctx, "dev-1")
	if !state.Relay {
		t.Error("Expected relay on after update")
	}
	if state.ControlReason != ReasonCriticalHigh {
		t.Errorf("Expected reason %q, got %q", ReasonCriticalHigh, state.ControlReason)
	}
	// Untouched fields survive the partial update.
	if !state.Auto || state.Threshold != 30 {
		t.Errorf("Expected auto/threshold untouched, got %+v", state)
	}
}

func TestGetControlStateReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	m.EnsureControlState(ctx, "dev-1", ControlState{Threshold: 30})

	state, _ := m.GetControlState(ctx, "dev-1")
	state.Threshold = 99

	fresh, _ := m.GetControlState(ctx, "dev-1")
	if fresh.Threshold != 30 {
		t.Error("Mutating a returned state must not affect the stored record")
	}
}

func TestDevicesAreIsolated(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	m.AppendReading(ctx, "dev-1", Reading{Ts: 100})
	m.AppendReading(ctx, "dev-2", Reading{Ts: 200})

	readings, _ := m.QueryReadings(ctx, "dev-1", 0, Range{})
	if len(readings) != 1 || readings[0].Ts != 100 {
		t.Errorf("Expected only dev-1 readings, got %+v", readings)
	}

	latest, _ := m.LatestReading(ctx, "dev-2")
	if latest == nil || latest.Ts != 200 {
		t.Errorf("Expected dev-2 latest ts 200, got %+v", latest)
	}
}
