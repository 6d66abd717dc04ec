// The sampler is the device-side agent: it polls the local sensor on a
// schedule and posts each reading to the ingest API. It runs on the
// microcontroller host (or headless with simulated readings) when the server
// is deployed elsewhere.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/smukkama/env-monitor/internal/sensor"
	"github.com/smukkama/env-monitor/internal/serial"
	"github.com/smukkama/env-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting sampler",
		zap.String("deviceId", cfg.Sampler.DeviceID),
		zap.Duration("interval", cfg.Sampler.Interval),
		zap.String("apiBase", cfg.Sampler.APIBase))

	var source sensor.LineSource
	if cfg.Serial.Port != "" {
		source = serial.NewLineReader(cfg.Serial.Port, cfg.Serial.BaudRate, logger)
	}
	acquirer := sensor.NewAcquirer(source, sensor.NewParser(), sensor.NewSimulator(), cfg.Serial.ReadTimeout, logger)
	defer acquirer.Close()

	client := &http.Client{Timeout: 10 * time.Second}

	c := cron.New()
	_, err = c.AddFunc(fmt.Sprintf("@every %s", cfg.Sampler.Interval), func() {
		if err := sampleAndPost(client, cfg, acquirer); err != nil {
			logger.Error("failed to post reading", zap.Error(err))
			return
		}
		logger.Info("reading posted", zap.String("deviceId", cfg.Sampler.DeviceID))
	})
	if err != nil {
		logger.Fatal("failed to schedule sampler", zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
}

func sampleAndPost(client *http.Client, cfg *config.Config, acquirer *sensor.Acquirer) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Serial.ReadTimeout+5*time.Second)
	defer cancel()

	data := acquirer.ReadSensorData(ctx)

	payload, err := json.Marshal(map[string]interface{}{
		"ts":          data.CapturedAt.UnixMilli(),
		"temperature": data.Temperature,
		"humidity":    data.Humidity,
	})
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	url := fmt.Sprintf("%s/api/readings/%s", cfg.Sampler.APIBase, cfg.Sampler.DeviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Auth.DeviceSecret != "" {
		req.Header.Set("X-Device-Secret", cfg.Auth.DeviceSecret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post reading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest endpoint returned %s", resp.Status)
	}
	return nil
}
