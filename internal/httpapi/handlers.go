package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smukkama/env-monitor/internal/ingest"
	"github.com/smukkama/env-monitor/internal/store"
)

type readingPayload struct {
	Ts          *int64  `json:"ts"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// ingestRequest accepts the two payload shapes of the ingest endpoint: a
// single reading, or a batch under "readings".
type ingestRequest struct {
	readingPayload
	Readings *[]readingPayload `json:"readings"`
}

func (p readingPayload) toReading() (store.Reading, error) {
	if p.Ts == nil {
		return store.Reading{}, ingest.ErrMissingTimestamp
	}
	return store.Reading{
		Ts:          *p.Ts,
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		CapturedAt:  time.UnixMilli(*p.Ts),
	}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	data := s.acquirer.ReadSensorData(r.Context())
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	var result *ingest.Result
	var err error

	if req.Readings != nil {
		readings := make([]store.Reading, 0, len(*req.Readings))
		for _, p := range *req.Readings {
			reading, convErr := p.toReading()
			if convErr != nil {
				writeError(w, http.StatusBadRequest, "every reading requires a numeric ts")
				return
			}
			readings = append(readings, reading)
		}
		result, err = s.ingest.IngestBatch(r.Context(), deviceID, readings)
	} else {
		reading, convErr := req.readingPayload.toReading()
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "reading requires a numeric ts")
			return
		}
		result, err = s.ingest.IngestOne(r.Context(), deviceID, reading)
	}

	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		} else {
			s.logger.Error("ingest failed", zap.String("deviceId", deviceID), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleQueryReadings(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]
	limit, rng, err := parseQueryBounds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := s.store.QueryReadings(r.Context(), deviceID, limit, rng)
	if err != nil {
		s.logger.Error("failed to query readings", zap.String("deviceId", deviceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch readings")
		return
	}
	if readings == nil {
		readings = []store.Reading{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"readings": readings})
}

func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]

	reading, err := s.store.LatestReading(r.Context(), deviceID)
	if err != nil {
		s.logger.Error("failed to fetch latest reading", zap.String("deviceId", deviceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch latest reading")
		return
	}
	if reading == nil {
		writeError(w, http.StatusNotFound, "no readings for device")
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleQueryAlerts(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]
	limit, rng, err := parseQueryBounds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := s.store.QueryAlerts(r.Context(), deviceID, limit, rng)
	if err != nil {
		s.logger.Error("failed to query alerts", zap.String("deviceId", deviceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch alerts")
		return
	}
	if alerts == nil {
		alerts = []store.AlertRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (s *Server) handleGetControl(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]

	state, err := s.store.GetControlState(r.Context(), deviceID)
	if err != nil {
		s.logger.Error("failed to fetch control state", zap.String("deviceId", deviceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch device control")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"control": state})
}

func (s *Server) handleSetRelay(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]

	var body struct {
		Relay *bool `json:"relay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Relay == nil {
		writeError(w, http.StatusBadRequest, "missing or invalid relay boolean in body")
		return
	}

	state, err := s.ingest.SetRelay(r.Context(), deviceID, *body.Relay)
	if err != nil {
		s.logger.Error("failed to set relay", zap.String("deviceId", deviceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to set relay flag")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deviceId": deviceID, "control": state})
}

func (s *Server) handleInitDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]

	state, err := s.ingest.EnsureDevice(r.Context(), deviceID)
	if err != nil {
		s.logger.Error("failed to init device", zap.String("deviceId", deviceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to initialize device control")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deviceId": deviceID, "control": state})
}

func parseQueryBounds(r *http.Request) (int, store.Range, error) {
	query := r.URL.Query()

	limit := store.DefaultQueryLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, store.Range{}, errors.New("limit must be a positive integer")
		}
		limit = parsed
	}

	var rng store.Range
	if raw := query.Get("from"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, store.Range{}, errors.New("from must be a millisecond timestamp")
		}
		rng.From = &parsed
	}
	if raw := query.Get("to"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, store.Range{}, errors.New("to must be a millisecond timestamp")
		}
		rng.To = &parsed
	}

	return limit, rng, nil
}

func isValidationError(err error) bool {
	return errors.Is(err, ingest.ErrMissingTimestamp) ||
		errors.Is(err, ingest.ErrEmptyBatch) ||
		errors.Is(err, ingest.ErrBatchTooLarge) ||
		errors.Is(err, store.ErrNegativeTimestamp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
