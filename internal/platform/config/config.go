package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	// BrokerMode selects the event bus adapter: "inprocess" or "kafka".
	BrokerMode   string
	KafkaBrokers []string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	ConsumerWorkers     int
	ConsumerMaxAttempts int
	ConsumerBaseBackoff time.Duration

	GatewayMaxAttempts  int
	GatewayBaseDelay    time.Duration
	GatewayBreakerRatio float64

	// OrderAPIBaseURL is where the delivery worker reads order details when it
	// runs in its own process.
	OrderAPIBaseURL string
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "fulfillment"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	mode := strings.TrimSpace(strings.ToLower(os.Getenv("BROKER_MODE")))
	if mode != "kafka" {
		mode = "inprocess"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		BrokerMode:   mode,
		KafkaBrokers: brokers,

		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),

		ConsumerWorkers:     envInt("CONSUMER_WORKERS", 4),
		ConsumerMaxAttempts: envInt("CONSUMER_MAX_ATTEMPTS", 5),
		ConsumerBaseBackoff: envDuration("CONSUMER_BASE_BACKOFF", 200*time.Millisecond),

		GatewayMaxAttempts:  envInt("GATEWAY_MAX_ATTEMPTS", 3),
		GatewayBaseDelay:    envDuration("GATEWAY_BASE_DELAY", 100*time.Millisecond),
		GatewayBreakerRatio: envFloat("GATEWAY_BREAKER_RATIO", 0.5),

		OrderAPIBaseURL: envString("ORDER_API_URL", "http://localhost:8080"),
	}, nil
}

func envString(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 || value > 1 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
