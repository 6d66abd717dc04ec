package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smukkama/env-monitor/internal/control"
	"github.com/smukkama/env-monitor/internal/httpapi"
	"github.com/smukkama/env-monitor/internal/ingest"
	"github.com/smukkama/env-monitor/internal/mqttctl"
	"github.com/smukkama/env-monitor/internal/queue"
	"github.com/smukkama/env-monitor/internal/sensor"
	"github.com/smukkama/env-monitor/internal/serial"
	"github.com/smukkama/env-monitor/internal/store"
	"github.com/smukkama/env-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting environment monitor server")

	telemetryStore, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize telemetry store", zap.Error(err))
	}
	defer cleanup()

	thresholds := control.Thresholds{
		Temperature: cfg.Thresholds.Temperature,
		Humidity:    cfg.Thresholds.Humidity,
	}

	ingestService := ingest.NewService(telemetryStore, thresholds, logger)

	if cfg.Kafka.Enabled() {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 1, 1); err != nil {
			logger.Warn("alert topic creation failed (may already exist)", zap.Error(err))
		}

		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		ingestService.WithAlertPublisher(producer, queue.EncodeAlertEvent)
		logger.Info("alert event producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	if cfg.MQTT.BrokerURL != "" {
		publisher, err := mqttctl.NewPublisher(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix, logger)
		if err != nil {
			logger.Fatal("failed to connect control publisher", zap.Error(err))
		}
		defer publisher.Close()
		ingestService.WithControlNotifier(publisher)
	}

	// Acquisition pipeline: serial line reader -> parser -> cache/fallback.
	var source sensor.LineSource
	if cfg.Serial.Port != "" {
		source = serial.NewLineReader(cfg.Serial.Port, cfg.Serial.BaudRate, logger)
	} else {
		logger.Info("no serial port configured, running headless")
	}
	acquirer := sensor.NewAcquirer(source, sensor.NewParser(), sensor.NewSimulator(), cfg.Serial.ReadTimeout, logger)
	defer acquirer.Close()

	api := httpapi.NewServer(telemetryStore, ingestService, acquirer, cfg.Auth.DeviceSecret, logger)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: api.Router(),
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildStore selects the in-memory store for development or the
// Postgres+Redis store for production.
func buildStore(cfg *config.Config, logger *zap.Logger) (store.TelemetryStore, func(), error) {
	if cfg.Store.InMemory {
		logger.Info("using in-memory telemetry store")
		return store.NewMemoryStore(), func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		redisClient.Close()
		return nil, nil, err
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	sqlStore, err := store.Connect(cfg.Database.ConnectionString(), store.NewStateCache(redisClient))
	if err != nil {
		redisClient.Close()
		return nil, nil, err
	}
	if err := sqlStore.InitSchema(); err != nil {
		sqlStore.Close()
		redisClient.Close()
		return nil, nil, err
	}
	logger.Info("connected to database", zap.String("host", cfg.Database.Host))

	cleanup := func() {
		sqlStore.Close()
		redisClient.Close()
	}
	return sqlStore, cleanup, nil
}
