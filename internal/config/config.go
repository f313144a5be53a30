// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultModel is used when GOOGLE_AI_MODEL is unset.
const DefaultModel = "models/gemini-2.5-flash"

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	DBPath             string
	SessionTTL         time.Duration // lifetime of a sign-in session
	TranscriptTTL      time.Duration // idle time before an owner's transcripts are evicted
	SweepInterval      time.Duration
	MaxRequestBodySize int64
	Model              ModelConfig
	Auth               AuthConfig
	RateLimit          RateLimitConfig
}

// ModelConfig configures the language model gateway.
type ModelConfig struct {
	APIKey     string
	Name       string
	ListModels bool
	Timeout    time.Duration // zero means no per-call deadline
}

// AuthConfig configures Google sign-in.
type AuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
	AllowAnonymous     bool
}

// Enabled reports whether OAuth credentials are present.
func (a AuthConfig) Enabled() bool {
	return a.GoogleClientID != "" && a.GoogleClientSecret != ""
}

// RateLimitConfig bounds chat turns per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/tutor.db"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		TranscriptTTL:      getEnvDuration("TRANSCRIPT_TTL", 24*time.Hour),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		Model:              LoadModel(),
		Auth: AuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:        getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
			AllowAnonymous:     getEnvBool("ALLOW_ANONYMOUS", false),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadModel reads only the model settings. The CLI uses it without the server config.
func LoadModel() ModelConfig {
	return ModelConfig{
		APIKey:     getEnv("GOOGLE_AI_API_KEY", ""),
		Name:       getEnv("GOOGLE_AI_MODEL", DefaultModel),
		ListModels: getEnvBool("GOOGLE_AI_LIST_MODELS", false),
		Timeout:    getEnvDuration("MODEL_TIMEOUT", 0),
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.Model.Name == "" {
		return errors.New("GOOGLE_AI_MODEL cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if c.TranscriptTTL <= 0 {
		return errors.New("TRANSCRIPT_TTL must be > 0")
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.IsDevelopment() {
		return nil
	}
	if !c.Auth.Enabled() {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required in production")
	}
	if c.Auth.AllowAnonymous {
		return errors.New("ALLOW_ANONYMOUS is not permitted in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins lists the browser origins permitted for CORS and WebSocket upgrades.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:" + c.Port}
	}
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
