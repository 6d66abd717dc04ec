// Package ingest orchestrates one ingestion call: validate, persist the
// readings, evaluate thresholds, and apply the relay decision with its
// best-effort side effects.
package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/env-monitor/internal/control"
	"github.com/smukkama/env-monitor/internal/store"
)

// MaxBatchSize is the upper bound on one batch ingestion call.
const MaxBatchSize = 200

var (
	ErrMissingTimestamp = errors.New("reading requires a non-negative ts")
	ErrEmptyBatch       = errors.New("readings batch must not be empty")
	ErrBatchTooLarge    = errors.New("readings batch exceeds 200 entries")
)

// AlertPublisher fans alert events out to interested consumers (Kafka).
type AlertPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// AlertEncoder turns an alert plus its decision into a wire payload.
type AlertEncoder func(deviceID string, alert store.AlertRecord, decision control.Decision) ([]byte, error)

// ControlNotifier pushes a control-state change toward the device (MQTT).
type ControlNotifier interface {
	PublishControlState(state store.ControlState) error
}

// Result is what one ingestion call produced. Keys always reflects the
// persisted readings; Alerts and Control reflect the evaluation, whether or
// not their best-effort writes succeeded.
type Result struct {
	Keys    []string            `json:"keys"`
	Alerts  []store.AlertRecord `json:"alerts"`
	Control store.ControlState  `json:"control"`
}

// Service is the ingestion boundary's collaborator: it owns the write path
// from validated readings to store, alerts, control state and notifications.
type Service struct {
	store      store.TelemetryStore
	thresholds control.Thresholds
	publisher  AlertPublisher
	encode     AlertEncoder
	notifier   ControlNotifier
	logger     *zap.Logger
	locks      *deviceLocks
}

// NewService wires the ingestion service. publisher, encode and notifier may
// be nil when the corresponding transport is not configured.
func NewService(st store.TelemetryStore, thresholds control.Thresholds, logger *zap.Logger) *Service {
	return &Service{
		store:      st,
		thresholds: thresholds,
		logger:     logger,
		locks:      newDeviceLocks(),
	}
}

// WithAlertPublisher adds the alert event bus.
func (s *Service) WithAlertPublisher(publisher AlertPublisher, encode AlertEncoder) *Service {
	s.publisher = publisher
	s.encode = encode
	return s
}

// WithControlNotifier adds the device-facing control push.
func (s *Service) WithControlNotifier(notifier ControlNotifier) *Service {
	s.notifier = notifier
	return s
}

// IngestOne persists a single reading and applies its relay decision.
// The reading write is the authoritative success signal; alert appends,
// control updates and notifications are best-effort.
func (s *Service) IngestOne(ctx context.Context, deviceID string, r store.Reading) (*Result, error) {
	if r.Ts < 0 {
		return nil, ErrMissingTimestamp
	}
	r.DeviceID = deviceID

	mu := s.locks.lock(deviceID)
	defer mu.Unlock()

	key, err := s.store.AppendReading(ctx, deviceID, r)
	if err != nil {
		return nil, err
	}

	alerts, decision := control.Evaluate(r, s.thresholds)
	state := s.applyDecision(ctx, deviceID, alerts, decision)

	return &Result{Keys: []string{key}, Alerts: alerts, Control: state}, nil
}

// IngestBatch persists readings in their given order and applies the batch
// relay policy: the first critical reading wins and sticks; a fully nominal
// batch reports relay-off from its last element.
func (s *Service) IngestBatch(ctx context.Context, deviceID string, readings []store.Reading) (*Result, error) {
	if len(readings) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(readings) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	for i := range readings {
		if readings[i].Ts < 0 {
			return nil, ErrMissingTimestamp
		}
		readings[i].DeviceID = deviceID
	}

	mu := s.locks.lock(deviceID)
	defer mu.Unlock()

	keys, err := s.store.AppendReadingsBatch(ctx, deviceID, readings)
	if err != nil {
		return nil, err
	}

	alerts, decision := control.EvaluateBatch(readings, s.thresholds)
	state := s.applyDecision(ctx, deviceID, alerts, decision)

	return &Result{Keys: keys, Alerts: alerts, Control: state}, nil
}

// applyDecision runs the best-effort side effects of an evaluation: alert
// appends, the control-state read-modify-write, and fan-out. Failures here
// are logged and swallowed so the ingest response still reflects the reading
// write that succeeded.
func (s *Service) applyDecision(ctx context.Context, deviceID string, alerts []store.AlertRecord, decision control.Decision) store.ControlState {
	ingestID := uuid.New().String()

	for _, alert := range alerts {
		if _, err := s.store.AppendAlert(ctx, deviceID, alert); err != nil {
			s.logger.Error("failed to append alert",
				zap.String("deviceId", deviceID),
				zap.String("ingestId", ingestID),
				zap.Error(err))
		}
	}

	state := s.updateControlState(ctx, deviceID, decision, ingestID)

	s.publishAlerts(ctx, deviceID, alerts, decision, ingestID)

	if s.notifier != nil {
		if err := s.notifier.PublishControlState(state); err != nil {
			s.logger.Error("failed to publish control state",
				zap.String("deviceId", deviceID),
				zap.String("ingestId", ingestID),
				zap.Error(err))
		}
	}

	return state
}

func (s *Service) updateControlState(ctx context.Context, deviceID string, decision control.Decision, ingestID string) store.ControlState {
	defaults := store.ControlState{
		Relay:         false,
		Auto:          false,
		AutoTs:        nil,
		ControlReason: store.ReasonWithinThreshold,
		Threshold:     s.thresholds.Temperature,
	}

	state, err := s.store.EnsureControlState(ctx, deviceID, defaults)
	if err != nil {
		s.logger.Error("failed to ensure control state",
			zap.String("deviceId", deviceID),
			zap.String("ingestId", ingestID),
			zap.Error(err))
		state = &defaults
		state.DeviceID = deviceID
	}

	update := store.ControlUpdate{
		Relay:         &decision.Relay,
		ControlReason: &decision.Reason,
	}
	if err := s.store.SetControlState(ctx, deviceID, update); err != nil {
		s.logger.Error("failed to update control state",
			zap.String("deviceId", deviceID),
			zap.String("ingestId", ingestID),
			zap.Error(err))
	}

	update.Apply(state)
	return *state
}

func (s *Service) publishAlerts(ctx context.Context, deviceID string, alerts []store.AlertRecord, decision control.Decision, ingestID string) {
	if s.publisher == nil || s.encode == nil {
		return
	}

	for _, alert := range alerts {
		payload, err := s.encode(deviceID, alert, decision)
		if err != nil {
			s.logger.Error("failed to encode alert event",
				zap.String("deviceId", deviceID),
				zap.String("ingestId", ingestID),
				zap.Error(err))
			continue
		}
		if err := s.publisher.Publish(ctx, deviceID, payload); err != nil {
			s.logger.Error("failed to publish alert event",
				zap.String("deviceId", deviceID),
				zap.String("ingestId", ingestID),
				zap.Error(err))
		}
	}
}

// EnsureDevice provisions the control record for a device, returning the
// existing record when present.
func (s *Service) EnsureDevice(ctx context.Context, deviceID string) (*store.ControlState, error) {
	mu := s.locks.lock(deviceID)
	defer mu.Unlock()

	return s.store.EnsureControlState(ctx, deviceID, store.ControlState{
		Relay:         false,
		Auto:          false,
		ControlReason: store.ReasonWithinThreshold,
		Threshold:     s.thresholds.Temperature,
	})
}

// SetRelay overrides the relay flag manually and pushes the change to the
// device when a notifier is configured.
func (s *Service) SetRelay(ctx context.Context, deviceID string, relay bool) (*store.ControlState, error) {
	mu := s.locks.lock(deviceID)
	defer mu.Unlock()

	if err := s.store.SetControlState(ctx, deviceID, store.ControlUpdate{Relay: &relay}); err != nil {
		return nil, err
	}

	state, err := s.store.GetControlState(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil && state != nil {
		if err := s.notifier.PublishControlState(*state); err != nil {
			s.logger.Error("failed to publish control state",
				zap.String("deviceId", deviceID),
				zap.Error(err))
		}
	}

	return state, nil
}
