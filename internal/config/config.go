package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	APIPort           string `yaml:"api_port"`
	WorkerMetricsPort string `yaml:"worker_metrics_port"`

	APIRateLimitRPS       float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst     int     `yaml:"api_rate_limit_burst"`
	APIMaxInFlight        int     `yaml:"api_max_in_flight"`
	APIBackpressureWaitMS int     `yaml:"api_backpressure_wait_ms"`

	ModelID                 string `yaml:"model_id"`
	InferenceURL            string `yaml:"inference_url"`
	InferenceAPIKey         string `yaml:"inference_api_key"`
	InferenceTimeoutSeconds int    `yaml:"inference_timeout_seconds"`

	StoragePath  string `yaml:"storage_path"`
	SourceBucket string `yaml:"source_bucket"`
	MailBucket   string `yaml:"mail_bucket"`

	QueueBackend       string   `yaml:"queue_backend"`
	NATSURL            string   `yaml:"nats_url"`
	IngestSubject      string   `yaml:"ingest_subject"`
	ResultQueue        string   `yaml:"result_queue"`
	KafkaBrokers       []string `yaml:"kafka_brokers"`
	KafkaConsumerGroup string   `yaml:"kafka_consumer_group"`

	WebhookURL string `yaml:"webhook_url"`

	PostgresDSN string `yaml:"postgres_dsn"`

	StrictPayload     bool `yaml:"strict_payload"`
	ResilienceEnabled bool `yaml:"resilience_enabled"`
	RetryMaxAttempts  int  `yaml:"retry_max_attempts"`
	RetryBackoffMS    int  `yaml:"retry_backoff_ms"`
	BreakerEnabled    bool `yaml:"breaker_enabled"`
}

const (
	QueueBackendNATS  = "nats"
	QueueBackendKafka = "kafka"
)

func defaults() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",

		APIPort:           "8080",
		WorkerMetricsPort: "9090",

		APIRateLimitBurst:     10,
		APIMaxInFlight:        16,
		APIBackpressureWaitMS: 250,

		InferenceURL: "http://localhost:8000",

		StoragePath: "./data/storage",
		MailBucket:  "inbound-mail",

		QueueBackend:       QueueBackendNATS,
		NATSURL:            "nats://localhost:4222",
		IngestSubject:      "bills.ingest",
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaConsumerGroup: "bill-notifier",

		RetryMaxAttempts: 3,
		RetryBackoffMS:   500,
		BreakerEnabled:   true,
	}
}

// Load builds the process configuration once: defaults, then the optional
// YAML file named by CONFIG_FILE, then environment overrides.
func Load() (Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	var env envParser
	cfg.LogLevel = mustEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = mustEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.APIPort = mustEnv("API_PORT", cfg.APIPort)
	cfg.WorkerMetricsPort = mustEnv("WORKER_METRICS_PORT", cfg.WorkerMetricsPort)
	cfg.APIRateLimitRPS = env.float("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS)
	cfg.APIRateLimitBurst = env.integer("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst)
	cfg.APIMaxInFlight = env.integer("API_MAX_IN_FLIGHT", cfg.APIMaxInFlight)
	cfg.APIBackpressureWaitMS = env.integer("API_BACKPRESSURE_WAIT_MS", cfg.APIBackpressureWaitMS)

	// AWS_* names are accepted for deployments migrated from the lambda setup.
	cfg.ModelID = mustEnv("MODEL_ID", mustEnv("AWS_BEDROCK_MODEL", cfg.ModelID))
	cfg.InferenceURL = mustEnv("INFERENCE_URL", cfg.InferenceURL)
	cfg.InferenceAPIKey = mustEnv("INFERENCE_API_KEY", cfg.InferenceAPIKey)
	cfg.InferenceTimeoutSeconds = env.integer("INFERENCE_TIMEOUT_SECONDS", cfg.InferenceTimeoutSeconds)

	cfg.StoragePath = mustEnv("STORAGE_PATH", cfg.StoragePath)
	cfg.SourceBucket = mustEnv("SOURCE_BUCKET", mustEnv("AWS_S3_BUCKET", cfg.SourceBucket))
	cfg.MailBucket = mustEnv("MAIL_BUCKET", cfg.MailBucket)

	cfg.QueueBackend = strings.ToLower(mustEnv("QUEUE_BACKEND", cfg.QueueBackend))
	cfg.NATSURL = mustEnv("NATS_URL", cfg.NATSURL)
	cfg.IngestSubject = mustEnv("INGEST_SUBJECT", cfg.IngestSubject)
	cfg.ResultQueue = mustEnv("RESULT_QUEUE", mustEnv("AWS_SQS_QUEUE_URL", cfg.ResultQueue))
	cfg.KafkaBrokers = mustEnvList("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = mustEnv("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)

	cfg.WebhookURL = mustEnv("WEBHOOK_URL", mustEnv("DISCORD_WEBHOOK_URL", cfg.WebhookURL))
	cfg.PostgresDSN = mustEnv("POSTGRES_DSN", cfg.PostgresDSN)

	cfg.StrictPayload = env.boolean("STRICT_PAYLOAD", cfg.StrictPayload)
	cfg.ResilienceEnabled = env.boolean("RESILIENCE_ENABLED", cfg.ResilienceEnabled)
	cfg.RetryMaxAttempts = env.integer("RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)
	cfg.RetryBackoffMS = env.integer("RETRY_BACKOFF_MS", cfg.RetryBackoffMS)
	cfg.BreakerEnabled = env.boolean("BREAKER_ENABLED", cfg.BreakerEnabled)
	if err := env.err(); err != nil {
		return Config{}, err
	}

	switch cfg.QueueBackend {
	case QueueBackendNATS, QueueBackendKafka:
	default:
		return Config{}, fmt.Errorf("config: unsupported QUEUE_BACKEND %q", cfg.QueueBackend)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Role names a process duty whose identifiers must be configured.
type Role string

const (
	RoleExtractor  Role = "extractor"
	RoleMailIngest Role = "mail-ingest"
	RoleNotifier   Role = "notifier"
)

// Require fails when an identifier a role depends on is blank.
func (c Config) Require(roles ...Role) error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	for _, role := range roles {
		switch role {
		case RoleExtractor:
			check("MODEL_ID", c.ModelID)
			check("RESULT_QUEUE", c.ResultQueue)
		case RoleMailIngest:
			check("SOURCE_BUCKET", c.SourceBucket)
		case RoleNotifier:
			check("WEBHOOK_URL", c.WebhookURL)
		default:
			return fmt.Errorf("config: unknown role %q", role)
		}
	}
	if len(missing) > 0 {
		return errors.New("config: missing required settings: " + strings.Join(missing, ", "))
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// envParser collects malformed values so Load reports all of them at once.
type envParser struct {
	errs []error
}

func (p *envParser) integer(key string, fallback int) int {
	return parseEnv(p, key, fallback, strconv.Atoi)
}

func (p *envParser) float(key string, fallback float64) float64 {
	return parseEnv(p, key, fallback, func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	})
}

func (p *envParser) boolean(key string, fallback bool) bool {
	return parseEnv(p, key, fallback, strconv.ParseBool)
}

func (p *envParser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid environment: %w", errors.Join(p.errs...))
}

func parseEnv[T any](p *envParser, key string, fallback T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := parse(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, v, err))
		return fallback
	}
	return parsed
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
