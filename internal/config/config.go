package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT issued by the network's auth service
	JWTSecret string

	// Bot (enforcement gateway)
	BotAPIURL     string
	BotAPIToken   string
	BotTimeout    time.Duration
	BotMaxRetries int

	// Guild whose settings are managed by observers only
	HubGuildID string

	// Banshare reminders
	ReminderInterval    time.Duration
	UrgentReminderAfter time.Duration
	ReminderAfter       time.Duration

	// Rate limiter storage; in-memory when empty
	RedisURL string

	// Server
	Port        string
	CORSOrigins string

	// Observability
	LogRetention time.Duration
	SentryDSN    string
	AppEnv       string
}

func Load() *Config {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "tcn"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		BotAPIURL:     getEnv("BOT_API_URL", ""),
		BotAPIToken:   getEnv("BOT_API_TOKEN", ""),
		BotTimeout:    parseDuration(getEnv("BOT_TIMEOUT", "10s"), 10*time.Second),
		BotMaxRetries: parseInt(getEnv("BOT_MAX_RETRIES", "2"), 2),

		HubGuildID: getEnv("HUB_GUILD_ID", ""),

		ReminderInterval:    parseDuration(getEnv("REMINDER_INTERVAL", "10m"), 10*time.Minute),
		UrgentReminderAfter: parseDuration(getEnv("URGENT_REMINDER_AFTER", "2h"), 2*time.Hour),
		ReminderAfter:       parseDuration(getEnv("REMINDER_AFTER", "6h"), 6*time.Hour),

		RedisURL: getEnv("REDIS_URL", ""),

		Port:        getEnv("PORT", "4000"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		LogRetention: parseDuration(getEnv("LOG_RETENTION", "720h"), 30*24*time.Hour),
		SentryDSN:    getEnv("SENTRY_DSN", ""),
		AppEnv:       getEnv("APP_ENV", "development"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
