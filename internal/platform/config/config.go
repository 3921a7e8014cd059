package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	JWT          JWTConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Slots        SlotsConfig
	Events       EventsConfig
	Retention    RetentionConfig
	Tracing      TracingConfig
	OutboxPoll   time.Duration
	ShutdownWait time.Duration
	// AdminToken guards operator routes; empty disables them.
	AdminToken string
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	// TokenTTL is only used by the dev token helper; tokens are minted elsewhere in production.
	TokenTTL time.Duration
}

// DatabaseConfig selects Postgres stores when URL is set, in-memory otherwise.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// SlotsConfig carries the upload timing rules.
type SlotsConfig struct {
	GraceWindow time.Duration
	UnlockDelay time.Duration
}

type EventsConfig struct {
	ConnectionBuffer int
	RelayChannel     string
	RelayBuffer      int
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

type RetentionConfig struct {
	Notifications   time.Duration
	Conversations   time.Duration
	StoryLifetime   time.Duration
	CleanupInterval time.Duration
}

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []string
	l := loader{errs: &errs}

	cfg := Server{
		Addr:        l.str("HATCHSEED_ADDR", ":8080"),
		Environment: l.str("ENVIRONMENT", "development"),
		LogLevel:    l.str("LOG_LEVEL", "info"),
		JWT: JWTConfig{
			SigningKey: l.str("JWT_SIGNING_KEY", ""),
			Issuer:     l.str("JWT_ISSUER", "hatchseed"),
			TokenTTL:   l.duration("JWT_TOKEN_TTL", 12*time.Hour),
		},
		Database: DatabaseConfig{
			URL:          l.str("DATABASE_URL", ""),
			MaxOpenConns: l.number("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: l.number("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          l.str("REDIS_URL", ""),
			PoolSize:     l.number("REDIS_POOL_SIZE", 10),
			MinIdleConns: l.number("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  l.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  l.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: l.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    l.list("KAFKA_BROKERS"),
			AuditTopic: l.str("KAFKA_AUDIT_TOPIC", "hatchseed.audit"),
		},
		Slots: SlotsConfig{
			GraceWindow: l.duration("SLOT_GRACE_WINDOW", 60*time.Second),
			UnlockDelay: l.duration("SLOT_UNLOCK_DELAY", 5*time.Minute),
		},
		Events: EventsConfig{
			ConnectionBuffer: l.number("EVENTS_CONNECTION_BUFFER", 64),
			RelayChannel:     l.str("EVENTS_RELAY_CHANNEL", "hatchseed:events"),
			RelayBuffer:      l.number("EVENTS_RELAY_BUFFER", 1024),
		},
		Retention: RetentionConfig{
			Notifications:   l.duration("NOTIFICATION_RETENTION", 10*24*time.Hour),
			Conversations:   l.duration("CONVERSATION_RETENTION", 10*24*time.Hour),
			StoryLifetime:   l.duration("STORY_LIFETIME", 24*time.Hour),
			CleanupInterval: l.duration("CLEANUP_INTERVAL", time.Hour),
		},
		Tracing: TracingConfig{
			Endpoint:    l.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: l.str("OTEL_SERVICE_NAME", "hatchseed"),
			SampleRatio: l.ratio("OTEL_TRACES_SAMPLE_RATIO", 1.0),
		},
		OutboxPoll:   l.duration("OUTBOX_POLL_INTERVAL", time.Second),
		ShutdownWait: l.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AdminToken:   l.str("ADMIN_TOKEN", ""),
	}

	if cfg.JWT.SigningKey == "" {
		if cfg.IsProduction() {
			errs = append(errs, "JWT_SIGNING_KEY is required in production")
		}
		// Use a default for development - should be overridden in production
		cfg.JWT.SigningKey = "dev-secret-key-change-in-production"
	}
	if cfg.Slots.GraceWindow <= 0 {
		errs = append(errs, "SLOT_GRACE_WINDOW must be positive")
	}
	if cfg.Slots.UnlockDelay < 0 {
		errs = append(errs, "SLOT_UNLOCK_DELAY must not be negative")
	}
	if cfg.Events.ConnectionBuffer <= 0 {
		errs = append(errs, "EVENTS_CONNECTION_BUFFER must be positive")
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

type loader struct {
	errs *[]string
}

func (l loader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (l loader) number(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func (l loader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func (l loader) ratio(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		*l.errs = append(*l.errs, fmt.Sprintf("%s: must be between 0 and 1", key))
		return def
	}
	return v
}

func (l loader) list(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
