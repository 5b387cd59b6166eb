package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	PGDSN string

	RedisAddr     string
	RedisPassword string
	ListingTTL    time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret     string
	TokenDuration time.Duration

	FCMEndpoint string
	FCMKey      string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		ListingTTL:      30 * time.Second,
		KafkaTopic:      "ride-events",
		TokenDuration:   24 * time.Hour,
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.ListingTTL, "LISTING_CACHE_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	setDurationFromEnv(&cfg.TokenDuration, "TOKEN_DURATION", &errs)

	cfg.FCMEndpoint = strings.TrimSpace(os.Getenv("FCM_ENDPOINT"))
	cfg.FCMKey = os.Getenv("FCM_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be set"))
	}

	return cfg, errors.Join(errs...)
}

// SweeperConfig captures tunables for the standalone sweep process.
type SweeperConfig struct {
	MetricsAddr string

	PGDSN string

	FCMEndpoint string
	FCMKey      string

	ReminderSchedule    string
	ExpirySchedule      string
	ReminderWindowStart time.Duration
	ReminderWindowEnd   time.Duration
	ReminderDedupe      bool

	LogLevel string
}

func defaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		MetricsAddr:         ":2112",
		ReminderSchedule:    "*/5 * * * *",
		ExpirySchedule:      "0 0 * * *",
		ReminderWindowStart: 15 * time.Minute,
		ReminderWindowEnd:   10 * time.Minute,
		LogLevel:            "info",
	}
}

func LoadSweeperConfig() (SweeperConfig, error) {
	cfg := defaultSweeperConfig()
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.FCMEndpoint = strings.TrimSpace(os.Getenv("FCM_ENDPOINT"))
	cfg.FCMKey = os.Getenv("FCM_KEY")
	setStringFromEnv(&cfg.ReminderSchedule, "REMINDER_SCHEDULE")
	setStringFromEnv(&cfg.ExpirySchedule, "EXPIRY_SCHEDULE")
	setDurationFromEnv(&cfg.ReminderWindowStart, "REMINDER_WINDOW_START", &errs)
	setDurationFromEnv(&cfg.ReminderWindowEnd, "REMINDER_WINDOW_END", &errs)
	cfg.ReminderDedupe = strings.EqualFold(os.Getenv("REMINDER_DEDUPE"), "true")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.ReminderWindowEnd >= cfg.ReminderWindowStart {
		errs = append(errs, fmt.Errorf("REMINDER_WINDOW_END must be shorter than REMINDER_WINDOW_START"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
