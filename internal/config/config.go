package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Reporting timezone; window boundary hours are evaluated in it
	Timezone string
	Location *time.Location

	// Named report windows (local clock hours)
	AfternoonStartHour int
	AfternoonEndHour   int
	DayStartHour       int
	DayEndHour         int

	// Upstream call-records API
	UpstreamBaseURL   string
	UpstreamAPIKey    string
	UpstreamAPISecret string
	UpstreamTimeout   time.Duration
	PageSize          int
	MaxPages          int
	RetryLimit        int // rate-limit retries per page, after the first attempt
	BackoffBase       time.Duration
	PacingInterval    time.Duration

	// Agents whose name matches any entry are excluded from reports
	ExcludedAgents []string

	// Chat delivery
	ChatWebhookURL string
	ChatTimeout    time.Duration

	// Cron expressions for scheduled report runs (empty disables)
	AfternoonCron string
	FullDayCron   string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Timezone:          getEnv("REPORT_TIMEZONE", "America/New_York"),
		UpstreamBaseURL:   getEnv("CALL_API_BASE_URL", "https://api.justcall.io"),
		UpstreamAPIKey:    getEnv("CALL_API_KEY", ""),
		UpstreamAPISecret: getEnv("CALL_API_SECRET", ""),
		ChatWebhookURL:    getEnv("CHAT_WEBHOOK_URL", ""),
		AfternoonCron:     getEnv("REPORT_CRON_AFTERNOON", "0 14 * * 1-5"),
		FullDayCron:       getEnv("REPORT_CRON_FULLDAY", "0 20 * * 1-5"),
	}

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}
	config.Location = loc

	if config.AfternoonStartHour, err = getEnvInt("WINDOW_AFTERNOON_START_HOUR", 9); err != nil {
		return nil, err
	}
	if config.AfternoonEndHour, err = getEnvInt("WINDOW_AFTERNOON_END_HOUR", 14); err != nil {
		return nil, err
	}
	if config.DayStartHour, err = getEnvInt("WINDOW_DAY_START_HOUR", 7); err != nil {
		return nil, err
	}
	if config.DayEndHour, err = getEnvInt("WINDOW_DAY_END_HOUR", 20); err != nil {
		return nil, err
	}
	if config.PageSize, err = getEnvInt("CALL_API_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if config.MaxPages, err = getEnvInt("CALL_API_MAX_PAGES", 50); err != nil {
		return nil, err
	}
	if config.RetryLimit, err = getEnvInt("CALL_API_RETRY_LIMIT", 3); err != nil {
		return nil, err
	}

	upstreamTimeout, err := getEnvInt("CALL_API_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}
	config.UpstreamTimeout = time.Duration(upstreamTimeout) * time.Second

	backoffBaseMs, err := getEnvInt("CALL_API_BACKOFF_BASE_MS", 1000)
	if err != nil {
		return nil, err
	}
	config.BackoffBase = time.Duration(backoffBaseMs) * time.Millisecond

	pacingMs, err := getEnvInt("CALL_API_PACING_MS", 500)
	if err != nil {
		return nil, err
	}
	config.PacingInterval = time.Duration(pacingMs) * time.Millisecond

	chatTimeout, err := getEnvInt("CHAT_TIMEOUT", 10)
	if err != nil {
		return nil, err
	}
	config.ChatTimeout = time.Duration(chatTimeout) * time.Second

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	// Exclusion list is comma-separated; empty entries are dropped
	for _, name := range strings.Split(getEnv("EXCLUDED_AGENTS", ""), ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			config.ExcludedAgents = append(config.ExcludedAgents, name)
		}
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a fallback default value
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
