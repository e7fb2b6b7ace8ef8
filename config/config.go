package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every process-level setting. It is loaded once in main()
// and passed to components at construction time; nothing reads env vars
// after startup.
type Config struct {
	Port string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// AppSecretKey feeds the secret codec that protects stored merchant
	// passwords and refresh tokens.
	AppSecretKey string

	AlifAPIKey      string
	AlifLocale      string
	AlifAuthURL     string
	AlifClientId    string
	AlifAPIBase     string
	AlifReportsBase string

	// DefaultPollSeconds / DefaultTimeoutSeconds bound the report wait loop
	// when the request does not override them.
	DefaultPollSeconds    int
	DefaultTimeoutSeconds int

	// HTTPTimeoutSeconds applies to auth/report API calls; downloads get the
	// longer DownloadTimeoutSeconds since exports can be large.
	HTTPTimeoutSeconds     int
	DownloadTimeoutSeconds int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port: strings.TrimSpace(os.Getenv("PORT")),

		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBName:     os.Getenv("DB_NAME"),

		AppSecretKey: os.Getenv("APP_SECRET_KEY"),

		AlifAPIKey:      os.Getenv("ALIF_API_KEY"),
		AlifLocale:      stringFromEnv("ALIF_LOCALE", "ru"),
		AlifAuthURL:     os.Getenv("ALIF_AUTH_URL"),
		AlifClientId:    stringFromEnv("ALIF_CLIENT_ID", "merchant-frontend"),
		AlifAPIBase:     stringFromEnv("ALIF_API_BASE", "https://api-merchant.alif.uz"),
		AlifReportsBase: stringFromEnv("ALIF_REPORTS_BASE", "https://api-merchant.alif.uz/merchant/excel/excel/v1/reports"),

		DefaultPollSeconds:    intFromEnv("REPORT_POLL_SECONDS", 10),
		DefaultTimeoutSeconds: intFromEnv("REPORT_TIMEOUT_SECONDS", 900),

		HTTPTimeoutSeconds:     intFromEnv("ALIF_HTTP_TIMEOUT_SECONDS", 60),
		DownloadTimeoutSeconds: intFromEnv("ALIF_DOWNLOAD_TIMEOUT_SECONDS", 180),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	if cfg.AppSecretKey == "" {
		return nil, errors.New("APP_SECRET_KEY is required")
	}
	if cfg.AlifAuthURL == "" {
		return nil, errors.New("ALIF_AUTH_URL is required")
	}

	return cfg, nil
}

func stringFromEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
