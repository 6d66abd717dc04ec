package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/smukkama/env-monitor/internal/notification"
	"github.com/smukkama/env-monitor/internal/queue"
	"github.com/smukkama/env-monitor/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Kafka.Enabled() {
		log.Fatal("KAFKA_BROKERS must be configured for the notification service")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting notification service")

	// Create email notifier
	notifier := notification.NewEmailNotifier(&cfg.SMTP)

	// Test SMTP connection (optional, will skip if not configured)
	if err := notifier.TestConnection(); err != nil {
		logger.Warn("SMTP unavailable, notifications will be logged only", zap.Error(err))
	}

	// Create consumer for alert events
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "notification-group")
	defer consumer.Close()
	logger.Info("kafka consumer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	ctx := context.Background()

	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				logger.Error("failed to consume message", zap.Error(err))
				continue
			}

			event, err := queue.DecodeAlertEvent(msg.Value)
			if err != nil {
				logger.Error("failed to decode alert event", zap.Error(err))
				consumer.Commit(ctx, msg)
				continue
			}

			if err := notifier.SendAlertNotification(event); err != nil {
				logger.Error("failed to send notification", zap.Error(err))
				// Don't commit on error - retry
				continue
			}

			if err := consumer.Commit(ctx, msg); err != nil {
				logger.Error("failed to commit offset", zap.Error(err))
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
}
