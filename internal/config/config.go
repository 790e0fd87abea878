package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends selectable via CACHE_BACKEND.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Common holds result-cache parameters shared by every service.
type Common struct {
	CacheBackend  string
	CacheTTL      time.Duration
	CacheCapacity int
	RedisAddr     string
	RedisPrefix   string
}

// Worker holds configuration for the Kafka -> pipeline worker.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr       string
	RequestTimeout time.Duration
	MaxRooms       int
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Worker{
		Common:         common,
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "scrape_results"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "offer-worker"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:         common,
		BindAddr:       getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		RequestTimeout: getDuration("API_REQUEST_TIMEOUT", "10s"),
		MaxRooms:       getInt("API_MAX_ROOMS", 500),
	}

	if c.RequestTimeout <= 0 {
		return nil, fmt.Errorf("API_REQUEST_TIMEOUT must be positive")
	}
	if c.MaxRooms <= 0 {
		return nil, fmt.Errorf("API_MAX_ROOMS must be positive")
	}

	return c, nil
}

func loadCommon() (Common, error) {
	c := Common{
		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
		CacheTTL:      getDuration("CACHE_TTL", "12h"),
		CacheCapacity: getInt("CACHE_CAPACITY", 10000),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPrefix:   getEnv("REDIS_PREFIX", "offers:"),
	}

	if c.CacheBackend != CacheMemory && c.CacheBackend != CacheRedis {
		return Common{}, fmt.Errorf("CACHE_BACKEND must be %q or %q", CacheMemory, CacheRedis)
	}
	if c.CacheTTL <= 0 {
		return Common{}, fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CacheCapacity <= 0 {
		return Common{}, fmt.Errorf("CACHE_CAPACITY must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
