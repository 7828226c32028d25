// Package config loads application settings from the environment.
package config

import (
	"errors"
	"os"
)

type Config struct {
	Env         string // "development" or "production"
	Port        string
	MongoURI    string
	MongoDB     string
	JWTSecret   string
	FrontendURL string
	APIBaseURL  string // public base URL gateway callbacks are sent to

	EsewaSecret      string
	EsewaProductCode string
	EsewaGatewayURL  string

	RedisAddr     string // optional; empty means in-process rate limiting
	RedisPassword string

	SMTPHost string // optional; empty disables email
	SMTPPort string
	SMTPUser string
	SMTPPass string
	EmailFrom string
}

// Load reads configuration from the environment. Callers load .env first
// (godotenv) so plain process environments and dotenv files behave the same.
func Load() (*Config, error) {
	cfg := &Config{
		Env:              getenv("APP_ENV", "development"),
		Port:             getenv("API_PORT", "8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getenv("MONGO_DATABASE", "carelink"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		FrontendURL:      getenv("FRONTEND_URL", "http://localhost:5173"),
		APIBaseURL:       getenv("API_BASE_URL", "http://localhost:"+getenv("API_PORT", "8080")),
		EsewaSecret:      os.Getenv("ESEWA_SECRET"),
		EsewaProductCode: os.Getenv("ESEWA_PRODUCT_CODE"),
		EsewaGatewayURL:  os.Getenv("ESEWA_GATEWAY_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		SMTPHost:         os.Getenv("EMAIL_HOST"),
		SMTPPort:         getenv("EMAIL_PORT", "587"),
		SMTPUser:         os.Getenv("EMAIL_USER"),
		SMTPPass:         os.Getenv("EMAIL_PASS"),
		EmailFrom:        getenv("EMAIL_FROM", "Carelink <no-reply@carelink.local>"),
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.EsewaSecret == "" {
		return nil, errors.New("ESEWA_SECRET is required")
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
