package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	RedisURL         string
	JWTSecret        string
	UploadPath       string
	PublicBaseURL    string
	Provider         string
	DefaultMode      string
	GeminiGenBaseURL string
	GeminiGenAPIKey  string
	KieBaseURL       string
	KieUploadURL     string
	KieAPIKey        string
	KieWebhookSecret string
	PhotoCost        int
	WelcomeCredits   int
	SubmitTimeout    time.Duration
	PollTimeout      time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	SettingsCacheTTL time.Duration
	MigrationsPath   string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		UploadPath:       getEnv("UPLOAD_PATH", "./uploads"),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		Provider:         getEnv("TIME_MACHINE_PROVIDER", "geminigen"),
		DefaultMode:      getEnv("TIME_MACHINE_MODE", "full_vintage"),
		GeminiGenBaseURL: getEnv("GEMINIGEN_BASE_URL", "https://api.geminigen.ai/uapi/v1"),
		GeminiGenAPIKey:  os.Getenv("GEMINIGEN_API_KEY"),
		KieBaseURL:       getEnv("KIE_BASE_URL", "https://api.kie.ai"),
		KieUploadURL:     getEnv("KIE_UPLOAD_URL", "https://kieai.redpandaai.co/api/file-base64-upload"),
		KieAPIKey:        os.Getenv("KIE_API_KEY"),
		KieWebhookSecret: os.Getenv("KIE_WEBHOOK_HMAC_KEY"),
		PhotoCost:        getEnvInt("TIME_MACHINE_COST", 1),
		WelcomeCredits:   getEnvInt("WELCOME_CREDITS", 3),
		SubmitTimeout:    time.Second * time.Duration(getEnvInt("PROVIDER_SUBMIT_TIMEOUT_SECONDS", 60)),
		PollTimeout:      time.Second * time.Duration(getEnvInt("PROVIDER_POLL_TIMEOUT_SECONDS", 30)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		SettingsCacheTTL: time.Second * time.Duration(getEnvInt("SETTINGS_CACHE_TTL_SECONDS", 30)),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "migrations"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.PhotoCost < 1 {
		return nil, fmt.Errorf("TIME_MACHINE_COST must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
