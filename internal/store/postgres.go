package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
)

// SQLStore is the production TelemetryStore: Postgres holds the append-only
// reading/alert logs, Redis (via StateCache) holds the latest-reading summary
// and the per-device control record.
type SQLStore struct {
	db    *sql.DB
	cache *StateCache
}

// Connect opens the Postgres connection and wires the state cache.
func Connect(connectionString string, cache *StateCache) (*SQLStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &SQLStore{db: db, cache: cache}, nil
}

// Close releases the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// InitSchema creates the telemetry tables if they do not exist.
func (s *SQLStore) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS readings (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			ts BIGINT NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			humidity DOUBLE PRECISION NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings (device_id, ts);

		CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			ts BIGINT NOT NULL,
			title TEXT NOT NULL,
			value TEXT NOT NULL,
			severity TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_device_ts ON alerts (device_id, ts);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLStore) AppendReading(ctx context.Context, deviceID string, r Reading) (string, error) {
	if r.Ts < 0 {
		return "", ErrNegativeTimestamp
	}

	query := `
		INSERT INTO readings (device_id, ts, temperature, humidity, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	if err := s.db.QueryRowContext(ctx, query,
		deviceID, r.Ts, r.Temperature, r.Humidity, r.CapturedAt,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert reading: %w", err)
	}

	r.DeviceID = deviceID
	if err := s.cache.SetLatest(ctx, deviceID, r); err != nil {
		return "", err
	}

	return strconv.FormatInt(id, 10), nil
}

func (s *SQLStore) AppendReadingsBatch(ctx context.Context, deviceID string, readings []Reading) ([]string, error) {
	if len(readings) == 0 {
		return nil, nil
	}
	for _, r := range readings {
		if r.Ts < 0 {
			return nil, ErrNegativeTimestamp
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch insert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO readings (device_id, ts, temperature, humidity, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	keys := make([]string, 0, len(readings))
	for _, r := range readings {
		var id int64
		if err := tx.QueryRowContext(ctx, query,
			deviceID, r.Ts, r.Temperature, r.Humidity, r.CapturedAt,
		).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to insert reading: %w", err)
		}
		keys = append(keys, strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch insert: %w", err)
	}

	// Summary reflects the maximum-ts reading in the batch.
	last := maxTsReading(readings)
	last.DeviceID = deviceID
	if err := s.cache.SetLatest(ctx, deviceID, last); err != nil {
		return nil, err
	}

	return keys, nil
}

func (s *SQLStore) AppendAlert(ctx context.Context, deviceID string, a AlertRecord) (string, error) {
	query := `
		INSERT INTO alerts (device_id, ts, title, value, severity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	if err := s.db.QueryRowContext(ctx, query,
		deviceID, a.Ts, a.Title, a.Value, a.Severity,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert alert: %w", err)
	}

	return strconv.FormatInt(id, 10), nil
}

func (s *SQLStore) QueryReadings(ctx context.Context, deviceID string, limit int, rng Range) ([]Reading, error) {
	query, args := buildRangeQuery(
		"SELECT device_id, ts, temperature, humidity, captured_at FROM readings",
		deviceID, normalizeLimit(limit), rng,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.DeviceID, &r.Ts, &r.Temperature, &r.Humidity, &r.CapturedAt); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverseReadings(readings)
	return readings, nil
}

func (s *SQLStore) QueryAlerts(ctx context.Context, deviceID string, limit int, rng Range) ([]AlertRecord, error) {
	query, args := buildRangeQuery(
		"SELECT device_id, ts, title, value, severity FROM alerts",
		deviceID, normalizeLimit(limit), rng,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AlertRecord
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.DeviceID, &a.Ts, &a.Title, &a.Value, &a.Severity); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverseAlerts(alerts)
	return alerts, nil
}

func (s *SQLStore) LatestReading(ctx context.Context, deviceID string) (*Reading, error) {
	return s.cache.GetLatest(ctx, deviceID)
}

func (s *SQLStore) GetControlState(ctx context.Context, deviceID string) (*ControlState, error) {
	return s.cache.GetControl(ctx, deviceID)
}

func (s *SQLStore) SetControlState(ctx context.Context, deviceID string, update ControlUpdate) error {
	return s.cache.SetControl(ctx, deviceID, update)
}

func (s *SQLStore) EnsureControlState(ctx context.Context, deviceID string, defaults ControlState) (*ControlState, error) {
	return s.cache.EnsureControl(ctx, deviceID, defaults)
}

// buildRangeQuery selects the most recent `limit` rows inside the inclusive
// range, newest first; callers reverse into ascending ts order.
func buildRangeQuery(selectClause, deviceID string, limit int, rng Range) (string, []interface{}) {
	query := selectClause + " WHERE device_id = $1"
	args := []interface{}{deviceID}

	if rng.From != nil {
		args = append(args, *rng.From)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if rng.To != nil {
		args = append(args, *rng.To)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY ts DESC, id DESC LIMIT $%d", len(args))

	return query, args
}

func reverseReadings(readings []Reading) {
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
}

func reverseAlerts(alerts []AlertRecord) {
	for i, j := 0, len(alerts)-1; i < j; i, j = i+1, j-1 {
		alerts[i], alerts[j] = alerts[j], alerts[i]
	}
}
