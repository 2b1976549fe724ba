package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"kpitracker/timezones"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI         string
	MongoDatabase    string
	JWTSecret        string
	Port             string
	RequestTimeout   time.Duration
	LogLevel         string
	DefaultTimezone  string
	TimezoneKeywords []timezones.KeywordRule
	TimezoneAliases  map[string]string
	RedisAddress     string
	RedisPassword    string
	EmployeeCacheTTL time.Duration
	ExportMaxRows    int
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		GetLogger().Warn("no .env file loaded: ", err)
	}

	cfg := Config{
		MongoURI:         getEnv("MONGODB_URI", ""),
		MongoDatabase:    getEnv("MONGO_DATABASE", "kpi_project"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		Port:             getEnv("PORT", "8081"),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DefaultTimezone:  getEnv("DEFAULT_TIMEZONE", timezones.DefaultZone),
		TimezoneKeywords: timezones.DefaultKeywords,
		TimezoneAliases:  timezones.DefaultAliases,
		RedisAddress:     getEnv("REDIS_ADDRESS", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		EmployeeCacheTTL: getEnvDuration("EMPLOYEE_CACHE_TTL", 5*time.Minute),
		ExportMaxRows:    getEnvInt("EXPORT_MAX_ROWS", 50000),
	}

	if cfg.MongoURI == "" {
		cfg.MongoURI = atlasURI(
			os.Getenv("MONGO_USERNAME"),
			os.Getenv("MONGO_PASSWORD"),
			os.Getenv("MONGO_CLUSTER"),
			os.Getenv("MONGO_APP_NAME"),
		)
	}

	if raw := os.Getenv("TIMEZONE_KEYWORDS"); raw != "" {
		rules, err := timezones.ParseKeywords(raw)
		if err != nil {
			return Config{}, fmt.Errorf("TIMEZONE_KEYWORDS: %w", err)
		}
		cfg.TimezoneKeywords = rules
	}
	if raw := os.Getenv("TIMEZONE_ALIASES"); raw != "" {
		aliases, err := timezones.ParseAliases(raw)
		if err != nil {
			return Config{}, fmt.Errorf("TIMEZONE_ALIASES: %w", err)
		}
		cfg.TimezoneAliases = aliases
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.MongoURI) == "" {
		return fmt.Errorf("MONGODB_URI or MONGO_USERNAME/MONGO_PASSWORD/MONGO_CLUSTER/MONGO_APP_NAME are required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.ExportMaxRows <= 0 {
		return fmt.Errorf("EXPORT_MAX_ROWS must be positive")
	}
	return nil
}

// Resolver builds the timezone resolver from the configured tables.
func (c Config) Resolver() (*timezones.Resolver, error) {
	return timezones.NewResolver(c.DefaultTimezone, c.TimezoneAliases, c.TimezoneKeywords)
}

func atlasURI(username, password, cluster, appName string) string {
	if username == "" || password == "" || cluster == "" {
		return ""
	}
	uri := fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority",
		url.QueryEscape(username), url.QueryEscape(password), cluster)
	if appName != "" {
		uri += "&appName=" + url.QueryEscape(appName)
	}
	return uri
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
