package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Mail ingestion configuration (crm-ingest)
	Mail MailConfig

	// Telegram bot configuration (crm-bot)
	Bot BotConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// MailConfig holds IMAP ingestion settings.
type MailConfig struct {
	Server   string
	Username string
	Password string
	Mailbox  string

	// Cron expression for the periodic sync.
	Schedule string
}

// BotConfig holds Telegram bot settings.
type BotConfig struct {
	Token string

	// Cron expression for the visit reminder sweep.
	NotifySchedule string

	// How far ahead the reminder sweep looks.
	NotifyWindow time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Mail:          loadMailConfig(),
		Bot:           loadBotConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CRM_HOST", "0.0.0.0"),
		Port:            getEnv("CRM_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CRM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CRM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CRM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CRM_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CRM_HEALTH_PORT", "9090"),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("CRM_POSTGRES_URL", ""); pgURL != "" {
		cfg.DatabaseURL = pgURL
	}
	if replicaURLs := getEnv("CRM_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.ReplicaURLs = storage.ParseReplicaURLs(replicaURLs)
	}
	if maxConns := getEnvInt("CRM_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("CRM_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("CRM_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	if s3Endpoint := getEnv("CRM_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("CRM_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("CRM_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3AccessKey := getEnv("CRM_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("CRM_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3UsePathStyle := getEnv("CRM_S3_USE_PATH_STYLE", ""); s3UsePathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(s3UsePathStyle) == "true"
	}

	if redisURL := getEnv("CRM_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("CRM_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("CRM_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("CRM_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("CRM_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	if cacheEnabled := getEnv("CRM_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}

	return cfg
}

func loadMailConfig() MailConfig {
	return MailConfig{
		Server:   getEnv("CRM_IMAP_SERVER", ""),
		Username: getEnv("CRM_IMAP_USERNAME", ""),
		Password: getEnv("CRM_IMAP_PASSWORD", ""),
		Mailbox:  getEnv("CRM_IMAP_MAILBOX", "INBOX"),
		Schedule: getEnv("CRM_INGEST_SCHEDULE", "0 */2 * * *"),
	}
}

func loadBotConfig() BotConfig {
	return BotConfig{
		Token:          getEnv("CRM_TELEGRAM_TOKEN", ""),
		NotifySchedule: getEnv("CRM_NOTIFY_SCHEDULE", "0 8 * * *"),
		NotifyWindow:   getEnvDuration("CRM_NOTIFY_WINDOW", 24*time.Hour),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("CRM_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("CRM_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("CRM_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("CRM_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("CRM_OTEL_SERVICE_NAME", "crm"),
		OTelServiceVersion: getEnv("CRM_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("CRM_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.DatabaseURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ValidateMail checks the settings crm-ingest additionally needs.
func (c *Config) ValidateMail() error {
	if c.Mail.Server == "" {
		return fmt.Errorf("IMAP server is required")
	}
	if c.Mail.Username == "" || c.Mail.Password == "" {
		return fmt.Errorf("IMAP credentials are required")
	}
	return nil
}

// ValidateBot checks the settings crm-bot additionally needs.
func (c *Config) ValidateBot() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.Bot.NotifyWindow <= 0 {
		return fmt.Errorf("notify window must be positive")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
