package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP       HTTPConfig
	Serial     SerialConfig
	Thresholds ThresholdConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	MQTT       MQTTConfig
	SMTP       SMTPConfig
	Sampler    SamplerConfig
	Auth       AuthConfig
	Store      StoreConfig
	Log        LogConfig
}

type HTTPConfig struct {
	Host string
	Port int
}

func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyUSB0. Empty means headless mode:
	// the acquisition service skips the hardware path entirely.
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

type ThresholdConfig struct {
	Temperature float64
	Humidity    float64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	// Brokers empty disables the alert event bus.
	Brokers     []string
	TopicAlerts string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type MQTTConfig struct {
	// BrokerURL empty disables control-state publishing.
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type SamplerConfig struct {
	DeviceID string
	Interval time.Duration
	APIBase  string
}

type AuthConfig struct {
	// DeviceSecret empty disables write authentication (dev mode).
	DeviceSecret string
}

type StoreConfig struct {
	// InMemory selects the in-process store instead of Postgres+Redis.
	InMemory bool
}

type LogConfig struct {
	Development bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		HTTP: HTTPConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnvAsInt("HTTP_PORT", 3000),
		},
		Serial: SerialConfig{
			Port:        getEnv("SERIAL_PORT", ""),
			BaudRate:    getEnvAsInt("SERIAL_BAUD_RATE", 115200),
			ReadTimeout: getEnvAsDuration("SERIAL_READ_TIMEOUT", 2*time.Second),
		},
		Thresholds: ThresholdConfig{
			Temperature: getEnvAsFloat("ALERT_TEMP_THRESHOLD", 30),
			Humidity:    getEnvAsFloat("ALERT_HUMIDITY_THRESHOLD", 70),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "envmon_user"),
			Password: getEnv("DB_PASSWORD", "envmon_pass"),
			DBName:   getEnv("DB_NAME", "envmon_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			TopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "env.alerts"),
		},
		MQTT: MQTTConfig{
			BrokerURL:   getEnv("MQTT_BROKER_URL", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "env-monitor-server"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "devices"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "env-monitor@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		Sampler: SamplerConfig{
			DeviceID: getEnv("SAMPLER_DEVICE_ID", "esp32-01"),
			Interval: getEnvAsDuration("SAMPLER_INTERVAL", time.Minute),
			APIBase:  getEnv("SAMPLER_API_BASE", "http://localhost:3000"),
		},
		Auth: AuthConfig{
			DeviceSecret: getEnv("DEVICE_SECRET", ""),
		},
		Store: StoreConfig{
			InMemory: getEnvAsBool("STORE_IN_MEMORY", false),
		},
		Log: LogConfig{
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitNonEmpty(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
