package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App        *AppConfig        `yaml:"app"`
	Database   *DatabaseConfig   `yaml:"database"`
	Redis      *RedisConfig      `yaml:"redis"`
	Security   *SecurityConfig   `yaml:"security"`
	Popularity *PopularityConfig `yaml:"popularity"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	Debug       bool   `yaml:"debug"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

type SecurityConfig struct {
	JWTSecret          string   `yaml:"jwt_secret"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// PopularityConfig tunes the scoring engine. BatchSize bounds how many
// recomputations run against the store at once during a full
// reconciliation; ReconcileInterval is the scheduler backstop period.
type PopularityConfig struct {
	BatchSize         int           `yaml:"batch_size"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	FailureAlertRatio float64       `yaml:"failure_alert_ratio"`
	PopularCacheTTL   time.Duration `yaml:"popular_cache_ttl"`
	DefaultListLimit  int64         `yaml:"default_list_limit"`
	MaxListLimit      int64         `yaml:"max_list_limit"`
}

func Load() (*Config, error) {
	config := &Config{
		App:        loadAppConfig(),
		Database:   loadDatabaseConfig(),
		Redis:      loadRedisConfig(),
		Security:   loadSecurityConfig(),
		Popularity: loadPopularityConfig(),
	}

	return config, nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:        getEnv("APP_NAME", "TripScore"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnvAsInt("APP_PORT", 8080),
		Host:        getEnv("APP_HOST", "localhost"),
		Debug:       getEnvAsBool("APP_DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func loadPopularityConfig() *PopularityConfig {
	return &PopularityConfig{
		BatchSize:         getEnvAsInt("POPULARITY_BATCH_SIZE", 10),
		ReconcileInterval: getEnvAsDuration("POPULARITY_RECONCILE_INTERVAL", 6*time.Hour),
		FailureAlertRatio: getEnvAsFloat64("POPULARITY_FAILURE_ALERT_RATIO", 0.1),
		PopularCacheTTL:   getEnvAsDuration("POPULARITY_CACHE_TTL", 60*time.Second),
		DefaultListLimit:  int64(getEnvAsInt("POPULARITY_DEFAULT_LIST_LIMIT", 10)),
		MaxListLimit:      int64(getEnvAsInt("POPULARITY_MAX_LIST_LIMIT", 100)),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func IsProduction() bool {
	return getEnv("APP_ENV", "development") == "production"
}

func IsDevelopment() bool {
	return getEnv("APP_ENV", "development") == "development"
}
