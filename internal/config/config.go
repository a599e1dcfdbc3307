// Package config loads application configuration from environment variables.
// A .env file in the working directory is read first when present; values
// already set in the process environment win over it.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the values shared by the server and the admission daemon.
type Config struct {
	Env       string // application environment (dev/test/prod)
	Port      string // HTTP port to listen on
	DBUser    string
	DBPass    string // may be empty
	DBHost    string
	DBPort    string
	DBName    string
	JWTSecret string // HS256 key shared with the auth service
	LogLevel  string
}

// Load reads the core configuration. Missing required variables are fatal.
func Load() Config {
	loadDotEnv()
	return Config{
		Env:       must("APP_ENV"),
		Port:      envStr("APP_PORT", "8080"),
		DBUser:    must("DB_USER"),
		DBPass:    env.GetString("DB_PASS"),
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
	}
}

// LoadAdmission reads the settings of the admission daemon. It serves no
// HTTP traffic, so neither a port nor the JWT secret is required.
func LoadAdmission() Config {
	loadDotEnv()
	return Config{
		Env:      envStr("APP_ENV", "dev"),
		DBUser:   must("DB_USER"),
		DBPass:   env.GetString("DB_PASS"),
		DBHost:   must("DB_HOST"),
		DBPort:   must("DB_PORT"),
		DBName:   must("DB_NAME"),
		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

// loadDotEnv populates the environment from .env. Absence of the file is
// normal in containers, so the error is only reported at debug level.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("config: no .env file loaded")
	}
}

// must retrieves the value of a required environment variable and exits
// when it is unset or empty.
func must(key string) string {
	v := env.GetString(key)
	if v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

// SetupLogging configures the global logrus logger: JSON to stdout at the
// requested level, falling back to info for unknown levels.
func SetupLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
