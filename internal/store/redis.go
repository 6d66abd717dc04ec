package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Summary/state retention. Devices that stop reporting age out.
const stateTTL = 30 * 24 * time.Hour

// StateCache keeps the per-device latest-reading summary and control record
// in Redis so "what is the current value" and "should the relay be on" are
// O(1) reads, never log scans.
type StateCache struct {
	redis *redis.Client
}

// NewStateCache creates a state cache on top of an existing Redis client.
func NewStateCache(redisClient *redis.Client) *StateCache {
	return &StateCache{redis: redisClient}
}

func latestKey(deviceID string) string {
	return fmt.Sprintf("readings-summary:%s:latest", deviceID)
}

func lastTsKey(deviceID string) string {
	return fmt.Sprintf("readings-summary:%s:lastTs", deviceID)
}

func controlKey(deviceID string) string {
	return fmt.Sprintf("device-control:%s", deviceID)
}

// SetLatest updates the latest-reading pointer and the last-timestamp marker
// as one logical update.
func (sc *StateCache) SetLatest(ctx context.Context, deviceID string, r Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal latest reading: %w", err)
	}

	pipe := sc.redis.TxPipeline()
	pipe.Set(ctx, latestKey(deviceID), data, stateTTL)
	pipe.Set(ctx, lastTsKey(deviceID), r.Ts, stateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update latest reading in Redis: %w", err)
	}

	return nil
}

// GetLatest returns the cached latest reading, or nil when the device has
// never reported.
func (sc *StateCache) GetLatest(ctx context.Context, deviceID string) (*Reading, error) {
	data, err := sc.redis.Get(ctx, latestKey(deviceID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading from Redis: %w", err)
	}

	var r Reading
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest reading: %w", err)
	}

	return &r, nil
}

// GetControl returns the device control record, or nil when absent.
func (sc *StateCache) GetControl(ctx context.Context, deviceID string) (*ControlState, error) {
	data, err := sc.redis.Get(ctx, controlKey(deviceID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get control state from Redis: %w", err)
	}

	var state ControlState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal control state: %w", err)
	}

	return &state, nil
}

// SetControl merges a partial update into the stored control record.
// Callers must serialize same-device updates; the ingest service holds a
// per-device lock around this read-modify-write.
func (sc *StateCache) SetControl(ctx context.Context, deviceID string, update ControlUpdate) error {
	state, err := sc.GetControl(ctx, deviceID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &ControlState{DeviceID: deviceID}
	}
	update.Apply(state)

	return sc.writeControl(ctx, deviceID, *state)
}

// EnsureControl creates the control record if absent; an existing record is
// returned untouched.
func (sc *StateCache) EnsureControl(ctx context.Context, deviceID string, defaults ControlState) (*ControlState, error) {
	defaults.DeviceID = deviceID
	data, err := json.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal control defaults: %w", err)
	}

	created, err := sc.redis.SetNX(ctx, controlKey(deviceID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to ensure control state in Redis: %w", err)
	}
	if created {
		return &defaults, nil
	}

	return sc.GetControl(ctx, deviceID)
}

func (sc *StateCache) writeControl(ctx context.Context, deviceID string, state ControlState) error {
	state.DeviceID = deviceID
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal control state: %w", err)
	}

	// Control records have no TTL: the relay flag must stay readable for as
	// long as the device exists.
	if err := sc.redis.Set(ctx, controlKey(deviceID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set control state in Redis: %w", err)
	}

	return nil
}
