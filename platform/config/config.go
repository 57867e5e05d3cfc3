// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"phoneai_backend/platform/apperr"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DirectoryConfig provides settings for the backend customer directory.
type DirectoryConfig interface {
	GetDirectoryBaseURL() string
	GetDirectoryVendorID() int64
	GetDirectoryTimeout() time.Duration
}

// PhoneConfig provides phone normalization defaults.
type PhoneConfig interface {
	GetDefaultCallingCode() int
}

// SessionConfig provides conversation session storage settings.
type SessionConfig interface {
	GetRedisURL() string
	GetSessionTTL() time.Duration
	IsRedisEnabled() bool
}

// HandoffConfig provides the optional handoff graph override.
type HandoffConfig interface {
	GetHandoffGraphFile() string
}

// LLMConfig provides settings for the conversation runtime model.
type LLMConfig interface {
	GetLLMAPIKey() string
	GetLLMBaseURL() string
	GetLLMModel() string
	IsLLMEnabled() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// ServiceAuthConfig provides the optional service token secret for the tool API.
type ServiceAuthConfig interface {
	GetServiceJWTSecret() string
	IsServiceAuthEnabled() bool
}

// RateLimitConfig provides per-IP rate limiting settings.
type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DirectoryBaseURL   string
	DirectoryVendorID  int64
	DirectoryTimeout   time.Duration
	DefaultCallingCode int
	RedisURL           string
	SessionTTL         time.Duration
	HandoffGraphFile   string
	LLMAPIKey          string
	LLMBaseURL         string
	LLMModel           string
	CORSAllowAll       bool
	CORSOrigins        []string
	ServiceJWTSecret   string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DirectoryConfig implementation
func (c *Config) GetDirectoryBaseURL() string        { return c.DirectoryBaseURL }
func (c *Config) GetDirectoryVendorID() int64        { return c.DirectoryVendorID }
func (c *Config) GetDirectoryTimeout() time.Duration { return c.DirectoryTimeout }

// PhoneConfig implementation
func (c *Config) GetDefaultCallingCode() int { return c.DefaultCallingCode }

// SessionConfig implementation
func (c *Config) GetRedisURL() string          { return c.RedisURL }
func (c *Config) GetSessionTTL() time.Duration { return c.SessionTTL }
func (c *Config) IsRedisEnabled() bool         { return c.RedisURL != "" }

// HandoffConfig implementation
func (c *Config) GetHandoffGraphFile() string { return c.HandoffGraphFile }

// LLMConfig implementation
func (c *Config) GetLLMAPIKey() string  { return c.LLMAPIKey }
func (c *Config) GetLLMBaseURL() string { return c.LLMBaseURL }
func (c *Config) GetLLMModel() string   { return c.LLMModel }
func (c *Config) IsLLMEnabled() bool    { return c.LLMAPIKey != "" }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// ServiceAuthConfig implementation
func (c *Config) GetServiceJWTSecret() string { return c.ServiceJWTSecret }
func (c *Config) IsServiceAuthEnabled() bool  { return c.ServiceJWTSecret != "" }

// RateLimitConfig implementation
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// Load reads configuration from environment variables.
// A missing or malformed required value yields a KindConfig error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":4000"),
		DirectoryBaseURL: strings.TrimRight(firstEnv("", "DIRECTORY_API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"), "/"),
		RedisURL:         getEnv("REDIS_URL", ""),
		HandoffGraphFile: getEnv("HANDOFF_GRAPH_FILE", ""),
		LLMAPIKey:        firstEnv("", "LLM_API_KEY", "OPENAI_API_KEY"),
		LLMBaseURL:       getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:         getEnv("LLM_MODEL", "gpt-4o-mini"),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		ServiceJWTSecret: getEnv("SERVICE_JWT_SECRET", ""),
	}

	var err error
	if cfg.DirectoryTimeout, err = parseDuration("DIRECTORY_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = parseDuration("SESSION_TTL", "2h"); err != nil {
		return nil, err
	}
	if cfg.DefaultCallingCode, err = parseInt("PHONE_DEFAULT_CALLING_CODE", "33"); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = parseInt("RATE_LIMIT_BURST", "20"); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = parseFloat("RATE_LIMIT_RPS", "10"); err != nil {
		return nil, err
	}

	if cfg.DirectoryBaseURL == "" {
		return nil, apperr.Config("DIRECTORY_API_BASE_URL is required")
	}
	if !strings.HasPrefix(cfg.DirectoryBaseURL, "http://") && !strings.HasPrefix(cfg.DirectoryBaseURL, "https://") {
		return nil, apperr.Config("DIRECTORY_API_BASE_URL must be an http(s) URL")
	}

	vendorRaw := strings.TrimSpace(firstEnv("", "DIRECTORY_VENDOR_ID", "NEXT_PUBLIC_VENDOR_ID"))
	if vendorRaw == "" {
		return nil, apperr.Config("DIRECTORY_VENDOR_ID is required")
	}
	vendorID, convErr := strconv.ParseInt(vendorRaw, 10, 64)
	if convErr != nil || vendorID <= 0 {
		return nil, apperr.Config("DIRECTORY_VENDOR_ID must be a positive integer")
	}
	cfg.DirectoryVendorID = vendorID

	if cfg.DirectoryTimeout <= 0 {
		return nil, apperr.Config("DIRECTORY_TIMEOUT must be positive")
	}
	if cfg.DefaultCallingCode <= 0 {
		return nil, apperr.Config("PHONE_DEFAULT_CALLING_CODE must be a positive calling code")
	}
	if !cfg.CORSAllowAll && len(cfg.CORSOrigins) == 0 {
		return nil, apperr.Config("CORS_ORIGINS must list at least one origin unless CORS_ALLOW_ALL is set")
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, apperr.Config("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, apperr.Wrap(apperr.KindConfig, fmt.Sprintf("%s must be a duration", key), err)
	}
	return d, nil
}

func parseInt(key, fallback string) (int, error) {
	v, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(getEnv(key, fallback)), "+"))
	if err != nil {
		return 0, apperr.Wrap(apperr.KindConfig, fmt.Sprintf("%s must be an integer", key), err)
	}
	return v, nil
}

func parseFloat(key, fallback string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(getEnv(key, fallback)), 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindConfig, fmt.Sprintf("%s must be a number", key), err)
	}
	return v, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
