package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port string

	DatabaseURL   string // Consolidated DB Connection URL
	DBDriver      string // postgres, mysql or sqlite
	DBLogLevel    string
	DBAutoMigrate bool

	RedisURL  string
	JWTSecret string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	Location *time.Location

	ReminderLeadDays     int
	ReminderDispatchHour int
	SweepCron            string
	SweepInterval        time.Duration

	ImportStrict bool
}

// LoadConfig reads configuration from environment variables (.env file)
func LoadConfig() (*Config, error) {
	// Load .env file. In production, env variables are often set directly.
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Asia/Ho_Chi_Minh"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	interval, err := time.ParseDuration(getEnv("SWEEP_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DBDriver:             strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBLogLevel:           getEnv("DB_LOG_LEVEL", "warn"),
		DBAutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", true),
		RedisURL:             getEnv("REDIS_URL", ""),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUser:             getEnv("SMTP_USER", ""),
		SMTPPass:             getEnv("SMTP_PASS", ""),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
		Location:             loc,
		ReminderLeadDays:     getEnvInt("REMINDER_LEAD_DAYS", 10),
		ReminderDispatchHour: getEnvInt("REMINDER_DISPATCH_HOUR", 8),
		SweepCron:            getEnv("SWEEP_CRON", "0 * * * *"),
		SweepInterval:        interval,
		ImportStrict:         getEnvBool("IMPORT_STRICT", false),
	}

	if cfg.ReminderDispatchHour < 0 || cfg.ReminderDispatchHour > 23 {
		return nil, fmt.Errorf("invalid REMINDER_DISPATCH_HOUR: %d", cfg.ReminderDispatchHour)
	}

	return cfg, nil
}

// Helper function to get env var or return default
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
