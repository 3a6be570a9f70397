package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	HTTPPort       string
	TelegramAPIURL string

	// Telegram webhook source ranges; empty list disables the check.
	AllowedSourceCIDRs []string

	WorkerCount     int
	QueueSize       int
	RequiredInvites int

	TenantCacheTTL time.Duration

	DeliveryTotalTimeout   time.Duration
	DeliveryConnectTimeout time.Duration
	DeliveryReadTimeout    time.Duration
	DeliveryMaxAttempts    int

	SweepInterval  time.Duration
	EventRetention time.Duration
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "botfleet"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		TelegramAPIURL: getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),

		AllowedSourceCIDRs: getEnvList("ALLOWED_SOURCE_CIDRS", []string{
			"149.154.160.0/20",
			"91.108.4.0/22",
		}),

		WorkerCount:     getEnvInt("WORKER_COUNT", 8),
		QueueSize:       getEnvInt("QUEUE_SIZE", 1024),
		RequiredInvites: getEnvInt("REQUIRED_INVITES", 5),

		TenantCacheTTL: getEnvDuration("TENANT_CACHE_TTL", 60*time.Second),

		DeliveryTotalTimeout:   getEnvDuration("DELIVERY_TOTAL_TIMEOUT", 180*time.Second),
		DeliveryConnectTimeout: getEnvDuration("DELIVERY_CONNECT_TIMEOUT", 15*time.Second),
		DeliveryReadTimeout:    getEnvDuration("DELIVERY_READ_TIMEOUT", 60*time.Second),
		DeliveryMaxAttempts:    getEnvInt("DELIVERY_MAX_ATTEMPTS", 6),

		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 1*time.Hour),
		EventRetention: getEnvDuration("EVENT_RETENTION", 30*24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %s", key, value, fallback)
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
