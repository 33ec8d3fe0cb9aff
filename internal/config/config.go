package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

// Supported record backends.
const (
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	ClinicLocation            *time.Location
	Database                  DatabaseConfig
	Mongo                     MongoConfig
	Redis                     RedisConfig
	Video                     VideoConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// MongoConfig holds document store connection details
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds the session/lock store connection details
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VideoConfig holds the video platform credentials used to mint room tokens
type VideoConfig struct {
	AccountSID   string
	APIKeySID    string
	APIKeySecret string
	TokenTTL     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", DriverMySQL),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "telepharmacy"),
	}
	switch dbConfig.Driver {
	case DriverMySQL, DriverMongo, DriverMemory:
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: expected %s, %s or %s", dbConfig.Driver, DriverMySQL, DriverMongo, DriverMemory)
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	mongoConfig := MongoConfig{
		URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		Database: getEnv("MONGO_DATABASE", "telepharmacy"),
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	redisConfig := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	videoTTLMinutes, err := strconv.Atoi(getEnv("VIDEO_TOKEN_TTL_MINUTES", "240"))
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_TOKEN_TTL_MINUTES: %w", err)
	}

	loc, err := time.LoadLocation(getEnv("CLINIC_TIMEZONE", "Asia/Bangkok"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE: %w", err)
	}

	// The account SID and auth token double as API key credentials on trial accounts.
	accountSID := getEnv("TWILIO_ACCOUNT_SID", "")
	videoConfig := VideoConfig{
		AccountSID:   accountSID,
		APIKeySID:    getEnv("TWILIO_API_KEY_SID", accountSID),
		APIKeySecret: getEnv("TWILIO_API_KEY_SECRET", getEnv("TWILIO_AUTH_TOKEN", "")),
		TokenTTL:     time.Duration(videoTTLMinutes) * time.Minute,
	}

	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:3000"),
		Environment:               getEnv("NODE_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		ClinicLocation:            loc,
		Database:                  dbConfig,
		Mongo:                     mongoConfig,
		Redis:                     redisConfig,
		Video:                     videoConfig,
	}, nil
}

// RefreshTTL is the lifetime of a refresh token.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshExpirationHours) * time.Hour
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
