package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration.
type Config struct {
	NATS       NATSConfig
	Elastic    ElasticConfig
	Scoring    ScoringConfig
	Controller ControllerConfig
	Queues     QueueConfig

	// MetricsAddr is the listen address for /metrics and /healthz.
	MetricsAddr string
	LogLevel    string
}

// NATSConfig holds message-bus configuration.
type NATSConfig struct {
	URL               string
	Name              string
	MaxReconnects     int
	ReconnectWait     time.Duration
	ConnectionTimeout time.Duration

	// Subjects
	LogsSubject      string
	AnomaliesSubject string
	TrainSubject     string
}

// ElasticConfig holds search-index client configuration.
type ElasticConfig struct {
	Endpoint       string
	Username       string
	Password       string
	Index          string
	MaxRetries     int
	RequestTimeout time.Duration
	SkipTLSVerify  bool
}

// ScoringConfig holds the anomaly heuristic configuration.
type ScoringConfig struct {
	// FailKeywords are matched against mined templates; any hit flags the
	// record as anomalous regardless of cluster support.
	FailKeywords []string
}

// KeywordPattern builds a single alternation regex from the keyword list.
// An empty list yields the empty string, which compiles to a matcher that
// matches nothing rather than everything.
func (c ScoringConfig) KeywordPattern() string {
	parts := make([]string, 0, len(c.FailKeywords))
	for _, kw := range c.FailKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		parts = append(parts, "("+kw+")")
	}
	return strings.Join(parts, "|")
}

// ControllerConfig holds the retrain signal controller tunables.
type ControllerConfig struct {
	SamplePeriod time.Duration
	WindowSize   int
	Model        string
}

// QueueConfig holds the bounded internal queue capacities. Capacities are
// tunables, not correctness requirements; a full queue blocks the producer.
type QueueConfig struct {
	LogQueueSize    int
	UpdateQueueSize int
}

// Default returns configuration built from environment variables with
// production defaults. Variable names follow the upstream deployment
// contract (ES_ENDPOINT, FAIL_KEYWORDS, ...).
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:               getEnv("NATS_URL", "nats://localhost:4222"),
			Name:              getEnv("NATS_CLIENT_NAME", "logsieve"),
			MaxReconnects:     getEnvInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:     getEnvDuration("NATS_RECONNECT_WAIT", "1s"),
			ConnectionTimeout: getEnvDuration("NATS_CONNECTION_TIMEOUT", "5s"),
			LogsSubject:       getEnv("NATS_LOGS_SUBJECT", "preprocessed_logs"),
			AnomaliesSubject:  getEnv("NATS_ANOMALIES_SUBJECT", "anomalies"),
			TrainSubject:      getEnv("NATS_TRAIN_SUBJECT", "train"),
		},
		Elastic: ElasticConfig{
			Endpoint:       getEnv("ES_ENDPOINT", "https://localhost:9200"),
			Username:       os.Getenv("ES_USERNAME"),
			Password:       os.Getenv("ES_PASSWORD"),
			Index:          getEnv("ES_INDEX", "logs"),
			MaxRetries:     getEnvInt("ES_MAX_RETRIES", 10),
			RequestTimeout: getEnvDuration("ES_REQUEST_TIMEOUT", "5s"),
			SkipTLSVerify:  getEnvBool("ES_SKIP_TLS_VERIFY", true),
		},
		Scoring: ScoringConfig{
			FailKeywords: splitKeywords(os.Getenv("FAIL_KEYWORDS")),
		},
		Controller: ControllerConfig{
			SamplePeriod: getEnvDuration("TRAIN_SAMPLE_PERIOD", "20s"),
			WindowSize:   getEnvInt("TRAIN_WINDOW_SIZE", 50),
			Model:        getEnv("TRAIN_MODEL", "nulog"),
		},
		Queues: QueueConfig{
			LogQueueSize:    getEnvInt("LOG_QUEUE_SIZE", 64),
			UpdateQueueSize: getEnvInt("UPDATE_QUEUE_SIZE", 64),
		},
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS URL cannot be empty")
	}
	if c.Elastic.Endpoint == "" {
		return fmt.Errorf("elasticsearch endpoint cannot be empty")
	}
	if c.Elastic.Index == "" {
		return fmt.Errorf("elasticsearch index cannot be empty")
	}
	if c.Controller.SamplePeriod <= 0 {
		return fmt.Errorf("controller sample period must be positive")
	}
	if c.Controller.WindowSize < 4 {
		return fmt.Errorf("controller window size must hold at least 4 samples")
	}
	if c.Queues.LogQueueSize <= 0 || c.Queues.UpdateQueueSize <= 0 {
		return fmt.Errorf("queue capacities must be positive")
	}
	return nil
}

func splitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Second
}
