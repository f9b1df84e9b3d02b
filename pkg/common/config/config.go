package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerHost         string
	SignalsServicePort string
	AnomalyServicePort string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxRequestBody     int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	SignalEventsTopic string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// Signal catalog
	CatalogOverlayPath string

	// Chat excerpt redaction
	RedactRulesPath string

	// Latest-signal cache
	LatestSignalCacheTTL time.Duration

	// Proposal workflow
	ProposalTTL           time.Duration
	ProposalSweepInterval time.Duration

	// Baseline / anomaly detection
	BaselineWindowDays   int
	RecentWindowDays     int
	MinBaselineSamples   int
	DetectionInterval    time.Duration
	DetectionDebounceTTL time.Duration

	// Capture rate limiting
	CaptureRateLimitRPS   int
	CaptureRateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerHost:         getEnv("SERVER_HOST", "0.0.0.0"),
		SignalsServicePort: getEnv("SIGNALS_SERVICE_PORT", "8080"),
		AnomalyServicePort: getEnv("ANOMALY_SERVICE_PORT", "8081"),
		ReadTimeout:        getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:       getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody:     int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "vitalis"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "vitalis123"),
		PostgresDB:       getEnv("POSTGRES_DB", "vitalis"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "vitalis-platform"),
		SignalEventsTopic: getEnv("SIGNAL_EVENTS_TOPIC", "health.signal.events"),

		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me-16+"),
		JWTIssuer:   getEnv("JWT_ISSUER", "vitalis-health"),
		JWTAudience: getEnv("JWT_AUDIENCE", "vitalis-api"),
		JWTTTL:      getDuration("JWT_TTL", 24*time.Hour),

		CatalogOverlayPath: getEnv("CATALOG_OVERLAY_PATH", ""),

		RedactRulesPath: getEnv("REDACT_RULES_PATH", ""),

		LatestSignalCacheTTL: getDuration("LATEST_SIGNAL_CACHE_TTL", 10*time.Minute),

		ProposalTTL:           getDuration("PROPOSAL_TTL", 72*time.Hour),
		ProposalSweepInterval: getDuration("PROPOSAL_SWEEP_INTERVAL", time.Hour),

		BaselineWindowDays:   getIntEnv("BASELINE_WINDOW_DAYS", 30),
		RecentWindowDays:     getIntEnv("RECENT_WINDOW_DAYS", 7),
		MinBaselineSamples:   getIntEnv("MIN_BASELINE_SAMPLES", 5),
		DetectionInterval:    getDuration("DETECTION_INTERVAL", 6*time.Hour),
		DetectionDebounceTTL: getDuration("DETECTION_DEBOUNCE_TTL", 15*time.Minute),

		CaptureRateLimitRPS:   getIntEnv("CAPTURE_RATE_LIMIT_RPS", 50),
		CaptureRateLimitBurst: getIntEnv("CAPTURE_RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
