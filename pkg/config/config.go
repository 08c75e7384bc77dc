package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/storage"
)

const envPrefix = "INGEST_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Quota         QuotaConfig
	Plans         PlansConfig
	Owners        OwnersConfig
	Sink          SinkConfig
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
	// RequestTimeout bounds the admission work of a single request
	RequestTimeout time.Duration
	HomepageURL    string
	CORSOrigins    []string
}

// QuotaConfig holds quota store settings
type QuotaConfig struct {
	Store       string // memory, redis
	KeyPrefix   string
	MaxRetries  int
	LockTimeout time.Duration
	LockShards  int
}

// PlansConfig holds plan catalog settings
type PlansConfig struct {
	Source        string // default, file, database
	File          string
	Watch         bool
	CacheSize     int
	CacheTTL      time.Duration
	PurgeSchedule string
}

// OwnersConfig holds site resolution settings
type OwnersConfig struct {
	Source    string // static, database
	CacheSize int
	CacheTTL  time.Duration
	// Static maps site IDs to "owner:plan", used when Source is static
	Static map[string]string
}

// SinkConfig holds event sink settings
type SinkConfig struct {
	Type         string // memory, s3, http
	Async        bool
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	S3Prefix       string

	HTTPURL          string
	HTTPTokenURL     string
	HTTPClientID     string
	HTTPClientSecret string
	HTTPScopes       []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Quota:         loadQuotaConfig(),
		Plans:         loadPlansConfig(),
		Owners:        loadOwnersConfig(),
		Sink:          loadSinkConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnv("PORT", "8080"),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		HomepageURL:     getEnv("HOMEPAGE_URL", "https://flooanalytics.com/"),
		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"*"}),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DatabaseMaxConns = getEnvInt("DATABASE_MAX_CONNS", cfg.DatabaseMaxConns)
	cfg.DatabaseMinConns = getEnvInt("DATABASE_MIN_CONNS", cfg.DatabaseMinConns)
	cfg.DatabaseTimeout = getEnvDuration("DATABASE_TIMEOUT", cfg.DatabaseTimeout)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.RedisMaxRetries = getEnvInt("REDIS_MAX_RETRIES", cfg.RedisMaxRetries)
	cfg.RedisPoolSize = getEnvInt("REDIS_POOL_SIZE", cfg.RedisPoolSize)
	cfg.RedisTimeout = getEnvDuration("REDIS_TIMEOUT", cfg.RedisTimeout)
	return cfg
}

func loadQuotaConfig() QuotaConfig {
	return QuotaConfig{
		Store:       strings.ToLower(getEnv("QUOTA_STORE", "memory")),
		KeyPrefix:   getEnv("QUOTA_KEY_PREFIX", "quota"),
		MaxRetries:  getEnvInt("QUOTA_MAX_RETRIES", 16),
		LockTimeout: getEnvDuration("QUOTA_LOCK_TIMEOUT", 5*time.Second),
		LockShards:  getEnvInt("QUOTA_LOCK_SHARDS", 32),
	}
}

func loadPlansConfig() PlansConfig {
	return PlansConfig{
		Source:        strings.ToLower(getEnv("PLANS_SOURCE", "default")),
		File:          getEnv("PLANS_FILE", ""),
		Watch:         getEnvBool("PLANS_WATCH", true),
		CacheSize:     getEnvInt("PLANS_CACHE_SIZE", 64),
		CacheTTL:      getEnvDuration("PLANS_CACHE_TTL", 10*time.Minute),
		PurgeSchedule: getEnv("PLANS_CACHE_PURGE", "@every 5m"),
	}
}

func loadOwnersConfig() OwnersConfig {
	return OwnersConfig{
		Source:    strings.ToLower(getEnv("OWNERS_SOURCE", "static")),
		CacheSize: getEnvInt("OWNERS_CACHE_SIZE", 10000),
		CacheTTL:  getEnvDuration("OWNERS_CACHE_TTL", time.Minute),
		Static:    getEnvMap("OWNERS_STATIC"),
	}
}

func loadSinkConfig() SinkConfig {
	return SinkConfig{
		Type:         strings.ToLower(getEnv("SINK_TYPE", "memory")),
		Async:        getEnvBool("SINK_ASYNC", true),
		Workers:      getEnvInt("SINK_WORKERS", 4),
		QueueSize:    getEnvInt("SINK_QUEUE_SIZE", 1024),
		WriteTimeout: getEnvDuration("SINK_WRITE_TIMEOUT", 10*time.Second),

		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", false),
		S3Prefix:       getEnv("S3_PREFIX", ""),

		HTTPURL:          getEnv("HTTP_SINK_URL", ""),
		HTTPTokenURL:     getEnv("HTTP_SINK_TOKEN_URL", ""),
		HTTPClientID:     getEnv("HTTP_SINK_CLIENT_ID", ""),
		HTTPClientSecret: getEnv("HTTP_SINK_CLIENT_SECRET", ""),
		HTTPScopes:       getEnvList("HTTP_SINK_SCOPES", nil),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("OTEL_SERVICE_NAME", "ingest"),
		OTelServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		OTelInsecure:       getEnvBool("OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Quota.Store {
	case "memory":
	case "redis":
		if err := c.Storage.ValidateRedis(); err != nil {
			return fmt.Errorf("redis quota store: %w", err)
		}
	default:
		return fmt.Errorf("invalid quota store: %s (must be memory or redis)", c.Quota.Store)
	}
	if c.Quota.MaxRetries <= 0 {
		return fmt.Errorf("quota max retries must be positive")
	}

	switch c.Plans.Source {
	case "default":
	case "file":
		if c.Plans.File == "" {
			return fmt.Errorf("plans file is required for file plan source")
		}
	case "database":
		if err := c.Storage.ValidateDatabase(); err != nil {
			return fmt.Errorf("database plan source: %w", err)
		}
	default:
		return fmt.Errorf("invalid plans source: %s (must be default, file or database)", c.Plans.Source)
	}

	switch c.Owners.Source {
	case "static":
		if len(c.Owners.Static) == 0 {
			return fmt.Errorf("static owners require %sOWNERS_STATIC", envPrefix)
		}
	case "database":
		if err := c.Storage.ValidateDatabase(); err != nil {
			return fmt.Errorf("database owner source: %w", err)
		}
	default:
		return fmt.Errorf("invalid owners source: %s (must be static or database)", c.Owners.Source)
	}

	switch c.Sink.Type {
	case "memory":
	case "s3":
		if c.Sink.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 sink")
		}
	case "http":
		if c.Sink.HTTPURL == "" {
			return fmt.Errorf("HTTP sink URL is required for http sink")
		}
		if c.Sink.HTTPTokenURL != "" && c.Sink.HTTPClientID == "" {
			return fmt.Errorf("HTTP sink client ID is required when a token URL is set")
		}
	default:
		return fmt.Errorf("invalid sink type: %s (must be memory, s3 or http)", c.Sink.Type)
	}

	if c.Observability.OTelEnabled {
		if strings.TrimSpace(c.Observability.OTelEndpoint) == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// getEnv returns an INGEST_-prefixed environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(envPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvMap parses "k1=v1,k2=v2". Entries without '=' are ignored.
func getEnvMap(key string) map[string]string {
	out := make(map[string]string)
	for _, part := range getEnvList(key, nil) {
		k, v, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
