package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process TelemetryStore. It backs development mode
// (STORE_IN_MEMORY) and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	readings map[string][]Reading
	alerts   map[string][]AlertRecord
	latest   map[string]Reading
	lastTs   map[string]int64
	control  map[string]*ControlState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings: make(map[string][]Reading),
		alerts:   make(map[string][]AlertRecord),
		latest:   make(map[string]Reading),
		lastTs:   make(map[string]int64),
		control:  make(map[string]*ControlState),
	}
}

func (m *MemoryStore) AppendReading(ctx context.Context, deviceID string, r Reading) (string, error) {
	if r.Ts < 0 {
		return "", ErrNegativeTimestamp
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r.DeviceID = deviceID
	m.readings[deviceID] = append(m.readings[deviceID], r)
	m.latest[deviceID] = r
	m.lastTs[deviceID] = r.Ts

	return uuid.New().String(), nil
}

func (m *MemoryStore) AppendReadingsBatch(ctx context.Context, deviceID string, readings []Reading) ([]string, error) {
	if len(readings) == 0 {
		return nil, nil
	}
	for _, r := range readings {
		if r.Ts < 0 {
			return nil, ErrNegativeTimestamp
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(readings))
	for _, r := range readings {
		r.DeviceID = deviceID
		m.readings[deviceID] = append(m.readings[deviceID], r)
		keys = append(keys, uuid.New().String())
	}

	// Summary reflects the maximum-ts reading, not the array-order-last one.
	last := maxTsReading(readings)
	last.DeviceID = deviceID
	m.latest[deviceID] = last
	m.lastTs[deviceID] = last.Ts

	return keys, nil
}

func (m *MemoryStore) AppendAlert(ctx context.Context, deviceID string, a AlertRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.DeviceID = deviceID
	m.alerts[deviceID] = append(m.alerts[deviceID], a)

	return uuid.New().String(), nil
}

func (m *MemoryStore) QueryReadings(ctx context.Context, deviceID string, limit int, rng Range) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Reading
	for _, r := range m.readings[deviceID] {
		if rng.Contains(r.Ts) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Ts < matched[j].Ts })
	return tailReadings(matched, normalizeLimit(limit)), nil
}

func (m *MemoryStore) QueryAlerts(ctx context.Context, deviceID string, limit int, rng Range) ([]AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []AlertRecord
	for _, a := range m.alerts[deviceID] {
		if rng.Contains(a.Ts) {
			matched = append(matched, a)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Ts < matched[j].Ts })
	return tailAlerts(matched, normalizeLimit(limit)), nil
}

func (m *MemoryStore) LatestReading(ctx context.Context, deviceID string) (*Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.latest[deviceID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryStore) GetControlState(ctx context.Context, deviceID string) (*ControlState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.control[deviceID]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *MemoryStore) SetControlState(ctx context.Context, deviceID string, update ControlUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.control[deviceID]
	if !ok {
		state = &ControlState{DeviceID: deviceID}
		m.control[deviceID] = state
	}
	update.Apply(state)

	return nil
}

func (m *MemoryStore) EnsureControlState(ctx context.Context, deviceID string, defaults ControlState) (*ControlState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.control[deviceID]; ok {
		copied := *state
		return &copied, nil
	}

	defaults.DeviceID = deviceID
	m.control[deviceID] = &defaults
	copied := defaults
	return &copied, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	return limit
}

func tailReadings(readings []Reading, limit int) []Reading {
	if len(readings) > limit {
		readings = readings[len(readings)-limit:]
	}
	out := make([]Reading, len(readings))
	copy(out, readings)
	return out
}

func tailAlerts(alerts []AlertRecord, limit int) []AlertRecord {
	if len(alerts) > limit {
		alerts = alerts[len(alerts)-limit:]
	}
	out := make([]AlertRecord, len(alerts))
	copy(out, alerts)
	return out
}
