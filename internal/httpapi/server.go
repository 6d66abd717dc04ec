// Package httpapi is the ingestion, query and device-control boundary in
// front of the telemetry core.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smukkama/env-monitor/internal/ingest"
	"github.com/smukkama/env-monitor/internal/sensor"
	"github.com/smukkama/env-monitor/internal/store"
)

// Server holds the handler dependencies and the route table.
type Server struct {
	store        store.TelemetryStore
	ingest       *ingest.Service
	acquirer     *sensor.Acquirer
	deviceSecret string
	logger       *zap.Logger
	router       *mux.Router
}

// NewServer builds the route table.
func NewServer(st store.TelemetryStore, ingestSvc *ingest.Service, acquirer *sensor.Acquirer, deviceSecret string, logger *zap.Logger) *Server {
	s := &Server{
		store:        st,
		ingest:       ingestSvc,
		acquirer:     acquirer,
		deviceSecret: deviceSecret,
		logger:       logger,
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/sensor", s.handleSensor).Methods(http.MethodGet)

	api.Handle("/readings/{deviceId}", s.requireDeviceSecret(http.HandlerFunc(s.handleIngest))).Methods(http.MethodPost)
	api.HandleFunc("/readings/{deviceId}", s.handleQueryReadings).Methods(http.MethodGet)
	api.HandleFunc("/readings/{deviceId}/latest", s.handleLatestReading).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{deviceId}", s.handleQueryAlerts).Methods(http.MethodGet)

	api.HandleFunc("/devices/{deviceId}/control", s.handleGetControl).Methods(http.MethodGet)
	api.Handle("/devices/{deviceId}/relay", s.requireDeviceSecret(http.HandlerFunc(s.handleSetRelay))).Methods(http.MethodPost)
	api.HandleFunc("/devices/{deviceId}/init", s.handleInitDevice).Methods(http.MethodPost)

	s.router = r
	return s
}

// Router returns the assembled handler.
func (s *Server) Router() http.Handler {
	return s.router
}
