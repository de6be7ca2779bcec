package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	EventBus EventBusConfig
	Worker   WorkerConfig
	Gateway  GatewayConfig
	Poller   PollerConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level string
}

type EventBusConfig struct {
	ChannelBufferSize int
}

type WorkerConfig struct {
	PoolSize   int
	MaxRetries int
}

type GatewayConfig struct {
	BaseURL    string
	SessionTTL time.Duration
}

type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// MongoConfig enables the durable store when URI is set; otherwise the
// in-memory store is used.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig enables the shared checkout-session registry when Addr is
// set; otherwise sessions live in process memory.
type RedisConfig struct {
	Addr     string
	Password string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		EventBus: EventBusConfig{
			ChannelBufferSize: getIntEnv("EVENT_CHANNEL_BUFFER_SIZE", 1000),
		},
		Worker: WorkerConfig{
			PoolSize:   getIntEnv("WORKER_POOL_SIZE", 4),
			MaxRetries: getIntEnv("MAX_RETRIES", 5),
		},
		Gateway: GatewayConfig{
			BaseURL:    getEnv("GATEWAY_BASE_URL", "http://localhost:8081"),
			SessionTTL: getDurationEnv("CHECKOUT_SESSION_TTL", 30*time.Minute),
		},
		Poller: PollerConfig{
			Interval:    getDurationEnv("PAYMENT_POLL_INTERVAL", 2*time.Second),
			MaxAttempts: getIntEnv("PAYMENT_POLL_MAX_ATTEMPTS", 5),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("MONGO_DATABASE", "dealroom"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}
