package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration for the auth gateway.
// Secrets stay as opaque strings and are never logged.
type Server struct {
	Addr         string
	SigningKey   string
	SystemAPIKey string
	CacheTTL     time.Duration
	CacheSize    int
	StoreTimeout time.Duration
	DatabaseURL  string
	Redis        RedisConfig
}

// RedisConfig captures connection settings for the shared resolution cache.
// An empty URL means Redis is not configured and the in-process cache is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("AUTHGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Server{
		Addr:         addr,
		SigningKey:   os.Getenv("AUTHGATE_SIGNING_KEY"),
		SystemAPIKey: os.Getenv("AUTHGATE_SYSTEM_API_KEY"),
		CacheTTL:     durationEnv("AUTHGATE_CACHE_TTL", time.Hour),
		CacheSize:    intEnv("AUTHGATE_CACHE_SIZE", 128),
		StoreTimeout: durationEnv("AUTHGATE_STORE_TIMEOUT", 5*time.Second),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func intEnv(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
