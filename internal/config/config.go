package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	Server struct {
		Port     string
		GinMode  string
		LogLevel string
	}

	Auth struct {
		JWTSecret string
	}

	Archive struct {
		Enabled   bool
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}

	CORS struct {
		AllowOrigins string
		AllowMethods string
		AllowHeaders string
	}
}

// Load loads configuration from environment variables
func Load() *Config {
	_ = godotenv.Load()

	config := &Config{}

	config.DB.Host = getEnv("DB_HOST", "localhost")
	config.DB.Port = getEnv("DB_PORT", "5432")
	config.DB.User = getEnv("DB_USER", "delibera")
	config.DB.Password = getEnv("DB_PASSWORD", "delibera_password")
	config.DB.Name = getEnv("DB_NAME", "delibera_db")
	config.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	config.Server.Port = getEnv("PORT", "8080")
	config.Server.GinMode = getEnv("GIN_MODE", "debug")
	config.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	config.Auth.JWTSecret = getEnv("JWT_SECRET", "change-me")

	config.Archive.Enabled = getEnvAsBool("ROSTER_ARCHIVE_ENABLED", false)
	config.Archive.Endpoint = getEnv("ROSTER_ARCHIVE_ENDPOINT", "localhost:9000")
	config.Archive.AccessKey = getEnv("ROSTER_ARCHIVE_ACCESS_KEY", "")
	config.Archive.SecretKey = getEnv("ROSTER_ARCHIVE_SECRET_KEY", "")
	config.Archive.Bucket = getEnv("ROSTER_ARCHIVE_BUCKET", "delibera-rosters")
	config.Archive.UseSSL = getEnvAsBool("ROSTER_ARCHIVE_USE_SSL", false)

	config.CORS.AllowOrigins = getEnv("CORS_ALLOW_ORIGINS", "*")
	config.CORS.AllowMethods = getEnv("CORS_ALLOW_METHODS", "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS")
	config.CORS.AllowHeaders = getEnv("CORS_ALLOW_HEADERS", "Origin,Content-Length,Content-Type,Authorization")

	return config
}

// GetDatabaseURL returns the database connection URL
func (c *Config) GetDatabaseURL() string {
	return "postgres://" + c.DB.User + ":" + c.DB.Password + "@" + c.DB.Host + ":" + c.DB.Port + "/" + c.DB.Name + "?sslmode=" + c.DB.SSLMode
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
