package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean.
type Config struct {
	Addr string

	PostgresURL string

	Redis RedisConfig

	KafkaBrokers []string
	EventsTopic  string

	// SweepInterval controls how often the overdue sweeper scans active plans.
	// Zero disables the sweeper.
	SweepInterval time.Duration

	// UpcomingCacheTTL bounds staleness of the upcoming-installments cache.
	UpcomingCacheTTL time.Duration
}

// RedisConfig captures Redis client settings. An empty URL disables Redis.
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
	cfg := Config{
		Addr:             getEnv("AMANAH_ADDR", ":8080"),
		PostgresURL:      os.Getenv("AMANAH_POSTGRES_URL"),
		EventsTopic:      getEnv("AMANAH_EVENTS_TOPIC", "amanah.payment-events"),
		SweepInterval:    getDuration("AMANAH_SWEEP_INTERVAL", time.Hour),
		UpcomingCacheTTL: getDuration("AMANAH_UPCOMING_CACHE_TTL", 5*time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("AMANAH_REDIS_URL"),
			PoolSize:     getInt("AMANAH_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("AMANAH_REDIS_MIN_IDLE", 2),
			DialTimeout:  getDuration("AMANAH_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("AMANAH_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("AMANAH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	if brokers := os.Getenv("AMANAH_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
