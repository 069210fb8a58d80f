// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PostgresURL selects the Postgres-backed stores when set; empty falls
	// back to in-memory stores (dev and tests).
	PostgresURL string
	// RedisURL selects the Redis-backed invite token store when set.
	RedisURL string
	// KafkaBrokers enables the Kafka audit publisher when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// SelectionOpensAt is the global gate before which selection status
	// writes are rejected. Zero means no opening time has been configured
	// and selection stays locked.
	SelectionOpensAt time.Time
	// EvaluationWindowStart/End bound every institute's evaluation dates.
	// A zero bound leaves that side of the window unbounded.
	EvaluationWindowStart time.Time
	EvaluationWindowEnd   time.Time

	// LockTimeout bounds how long a nomination or join waits on its keyed
	// lock before reporting contention.
	LockTimeout time.Duration
	// UpdateRetries bounds internal retries of version-conflicted writes.
	UpdateRetries int
}

// RedisConfig tunes the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables. A malformed
// value is an error rather than a silent fallback; the date gates in
// particular must never open because of a typo.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("HACKGATE_ADDR", ":8080"),
		JWTSigningKey: envOr("HACKGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:   os.Getenv("HACKGATE_POSTGRES_URL"),
		RedisURL:      os.Getenv("HACKGATE_REDIS_URL"),
		AuditTopic:    envOr("HACKGATE_AUDIT_TOPIC", "hackgate.audit"),
		LockTimeout:   envDuration("HACKGATE_LOCK_TIMEOUT", 3*time.Second),
		UpdateRetries: envInt("HACKGATE_UPDATE_RETRIES", 3),
	}

	if brokers := os.Getenv("HACKGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.SelectionOpensAt, err = envTime("HACKGATE_SELECTION_OPENS_AT"); err != nil {
		return Server{}, err
	}
	if cfg.EvaluationWindowStart, err = envTime("HACKGATE_EVALUATION_WINDOW_START"); err != nil {
		return Server{}, err
	}
	if cfg.EvaluationWindowEnd, err = envTime("HACKGATE_EVALUATION_WINDOW_END"); err != nil {
		return Server{}, err
	}
	if !cfg.EvaluationWindowStart.IsZero() && !cfg.EvaluationWindowEnd.IsZero() &&
		cfg.EvaluationWindowEnd.Before(cfg.EvaluationWindowStart) {
		return Server{}, fmt.Errorf("HACKGATE_EVALUATION_WINDOW_END precedes HACKGATE_EVALUATION_WINDOW_START")
	}

	return cfg, nil
}

// Redis derives the Redis client configuration.
func (s Server) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envTime(key string) (time.Time, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}
