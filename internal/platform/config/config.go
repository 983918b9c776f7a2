package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures server and storage level configuration so main stays lean.
type Config struct {
	Addr            string
	DatabaseURL     string
	Redis           RedisConfig
	KafkaBrokers    string
	AuditTopic      string
	EnforceUniverse bool
	ShutdownTimeout time.Duration
}

// RedisConfig controls the optional member cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:            envOr("GEOSET_ADDR", ":8080"),
		DatabaseURL:     envOr("GEOSET_DATABASE_URL", "postgres://localhost:5432/geoset?sslmode=disable"),
		KafkaBrokers:    os.Getenv("GEOSET_KAFKA_BROKERS"),
		AuditTopic:      envOr("GEOSET_AUDIT_TOPIC", "geoset.mutations"),
		EnforceUniverse: os.Getenv("GEOSET_ENFORCE_UNIVERSE") == "true",
		ShutdownTimeout: 10 * time.Second,
		Redis: RedisConfig{
			URL:          os.Getenv("GEOSET_REDIS_URL"),
			PoolSize:     envIntOr("GEOSET_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("GEOSET_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
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
