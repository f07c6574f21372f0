package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Detection  DetectionConfig
	Sync       SyncConfig
	LocalStore LocalStoreConfig
	Tracker    TrackerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// DetectionConfig holds geofence detection tuning.
type DetectionConfig struct {
	DwellThreshold        time.Duration
	DepartureConfirmation time.Duration
	DefaultVenueRadiusKm  float64
}

// SyncConfig holds sync worker tuning.
type SyncConfig struct {
	Interval      time.Duration
	BatchSize     int
	MaxRejections int
}

// LocalStoreConfig holds the tracker's local database configuration.
type LocalStoreConfig struct {
	Path string
}

// TrackerConfig holds tracker identity and upstream API configuration.
type TrackerConfig struct {
	UserID     string
	APIBaseURL string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "visits"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "visit-tracking-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Detection: DetectionConfig{
			DwellThreshold:        getDurationEnv("DETECTION_DWELL_THRESHOLD", 10*time.Minute),
			DepartureConfirmation: getDurationEnv("DETECTION_DEPARTURE_CONFIRMATION", 5*time.Minute),
			DefaultVenueRadiusKm:  getFloatEnv("DETECTION_DEFAULT_RADIUS_KM", 0.1),
		},
		Sync: SyncConfig{
			Interval:      getDurationEnv("SYNC_INTERVAL", 1*time.Minute),
			BatchSize:     getIntEnv("SYNC_BATCH_SIZE", 50),
			MaxRejections: getIntEnv("SYNC_MAX_REJECTIONS", 3),
		},
		LocalStore: LocalStoreConfig{
			Path: getEnv("LOCAL_STORE_PATH", "visits.db"),
		},
		Tracker: TrackerConfig{
			UserID:     getEnv("TRACKER_USER_ID", ""),
			APIBaseURL: getEnv("TRACKER_API_URL", "http://localhost:8080"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
