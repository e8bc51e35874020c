package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Postgres captures the action log database configuration. An empty URL
// selects the in-memory store.
type Postgres struct {
	URL string
}

// RedisConfig captures the draft store configuration. An empty URL
// selects the in-memory draft store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures broker configuration for the validation queue and the
// audit relay. Empty brokers disable both.
type Kafka struct {
	Brokers  []string
	ClientID string
}

// Upstreams captures the external systems the synchronizer talks to.
type Upstreams struct {
	FHIRBaseURL     string
	NotificationURL string
}

// Config is the full service configuration.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     RedisConfig
	Kafka     Kafka
	Upstreams Upstreams

	// DraftTTL bounds how long an untouched draft overlay survives.
	DraftTTL time.Duration

	// DedupeRuleTTL bounds how long deduplication rules are cached.
	DedupeRuleTTL time.Duration
}

// FromEnv builds the configuration from environment variables so main
// stays lean.
func FromEnv() Config {
	cfg := Config{
		Server: Server{
			Addr:          envOr("REGISTRAR_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			URL: os.Getenv("REGISTRAR_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REGISTRAR_REDIS_URL"),
			PoolSize:     envIntOr("REGISTRAR_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REGISTRAR_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Upstreams: Upstreams{
			FHIRBaseURL:     os.Getenv("REGISTRAR_FHIR_URL"),
			NotificationURL: os.Getenv("REGISTRAR_NOTIFICATION_URL"),
		},
		DraftTTL:      envDurationOr("REGISTRAR_DRAFT_TTL", 7*24*time.Hour),
		DedupeRuleTTL: envDurationOr("REGISTRAR_DEDUPE_RULE_TTL", 5*time.Minute),
	}

	if brokers := os.Getenv("REGISTRAR_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.ClientID = envOr("REGISTRAR_KAFKA_CLIENT_ID", "registrar")

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
