package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	Debug             bool
	CacheTTL          time.Duration
	UpstreamTimeout   time.Duration
	MinAbsPremium     float64
	MinTradedValue    float64
	ClientRateLimit   bool
	BackgroundRefresh bool
	LogFile           string
	LogLevel          string
}

var AppConfig *Config

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:              getEnv("PORT", "5000"),
		Debug:             getEnvBool("DEBUG", false),
		CacheTTL:          time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		UpstreamTimeout:   time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 8)) * time.Second,
		MinAbsPremium:     getEnvFloat("MIN_ABS_PREMIUM", 0.8),
		MinTradedValue:    getEnvFloat("MIN_TRADED_VALUE", 5000000),
		ClientRateLimit:   getEnvBool("CLIENT_RATE_LIMIT", true),
		BackgroundRefresh: getEnvBool("BACKGROUND_REFRESH", false),
		LogFile:           getEnv("LOG_FILE", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	AppConfig = config
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "t", "true", "True", "TRUE":
		return true
	case "0", "f", "false", "False", "FALSE":
		return false
	}
	log.Printf("Invalid value for %s: %q, using default %v", key, value, defaultValue)
	return defaultValue
}
