// Package config assembles runtime configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// PostgresConfig captures the artifact store connection settings.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig captures projection cache connection settings. An empty URL
// means Redis is not configured and the in-process cache is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoConfig captures the collection-point directory connection settings.
// An empty URI means the YAML seed directory is used instead.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// KafkaConfig captures the audit trail transport. Empty brokers disable
// Kafka publishing; events then stay on the in-memory sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ConsentConfig captures engine tunables.
type ConsentConfig struct {
	CacheTTL      time.Duration
	OpTimeout     time.Duration
	DirectorySeed string
}

// Config is the full runtime configuration.
type Config struct {
	Server   Server
	Postgres PostgresConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Kafka    KafkaConfig
	Consent  ConsentConfig
}

// FromEnv builds the configuration from environment variables, applying
// development defaults where unset.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: envString("CONCUR_ADDR", ":8080"),
		},
		Postgres: PostgresConfig{
			DSN:          envString("CONCUR_POSTGRES_DSN", ""),
			MaxOpenConns: envInt("CONCUR_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("CONCUR_POSTGRES_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          envString("CONCUR_REDIS_URL", ""),
			PoolSize:     envInt("CONCUR_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CONCUR_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("CONCUR_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CONCUR_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CONCUR_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Mongo: MongoConfig{
			URI:      envString("CONCUR_MONGO_URI", ""),
			Database: envString("CONCUR_MONGO_DATABASE", "concur"),
			Timeout:  envDuration("CONCUR_MONGO_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("CONCUR_KAFKA_BROKERS"),
			Topic:   envString("CONCUR_KAFKA_AUDIT_TOPIC", "concur.consent.audit"),
		},
		Consent: ConsentConfig{
			CacheTTL:      envDuration("CONCUR_CONSENT_CACHE_TTL", time.Hour),
			OpTimeout:     envDuration("CONCUR_CONSENT_OP_TIMEOUT", 5*time.Second),
			DirectorySeed: envString("CONCUR_DIRECTORY_SEED", ""),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
