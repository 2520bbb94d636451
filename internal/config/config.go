// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds everything the app reads from the environment. Numeric
// and duration settings stay as strings here; the typed accessors
// apply defaults and Validate reports anything unparseable.
type Config struct {
	// Port the web frontend listens on.
	Port string `koanf:"PORT"`

	// APIBaseURL is the expense backend, without the /api/v1 prefix.
	APIBaseURL string `koanf:"API_BASE_URL"`

	// SessionDBPath is the SQLite file holding browser sessions.
	SessionDBPath string `koanf:"SESSION_DB_PATH"`

	// SecureCookies marks session cookies Secure. Leave off for
	// plain-HTTP local development only.
	SecureCookies string `koanf:"SECURE_COOKIES"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"LOG_LEVEL"`

	// ProfileCacheTTL bounds how long /user/me responses are reused.
	ProfileCacheTTL string `koanf:"PROFILE_CACHE_TTL"`

	// RateLimitPerMinute caps requests per client IP.
	RateLimitPerMinute string `koanf:"RATE_LIMIT_PER_MINUTE"`
}

func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{
		Port:               "8080",
		APIBaseURL:         "http://localhost:3000",
		SessionDBPath:      "./data/sessions.db",
		SecureCookies:      "false",
		LogLevel:           "info",
		ProfileCacheTTL:    "5m",
		RateLimitPerMinute: "120",
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.APIBaseURL == "" {
		errors = append(errors, "API base URL cannot be empty")
	} else if parsed, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	}

	if c.SessionDBPath == "" {
		errors = append(errors, "session database path cannot be empty")
	}

	if _, err := strconv.ParseBool(c.SecureCookies); err != nil {
		errors = append(errors, fmt.Sprintf("invalid secure cookies value '%s': must be a boolean", c.SecureCookies))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if ttl, err := time.ParseDuration(c.ProfileCacheTTL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid profile cache TTL '%s': %v", c.ProfileCacheTTL, err))
	} else if ttl < time.Second {
		errors = append(errors, fmt.Sprintf("invalid profile cache TTL %v: must be at least 1 second", ttl))
	} else if ttl > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid profile cache TTL %v: must be at most 24 hours", ttl))
	}

	if limit, err := strconv.Atoi(c.RateLimitPerMinute); err != nil {
		errors = append(errors, fmt.Sprintf("invalid rate limit '%s': must be a number", c.RateLimitPerMinute))
	} else if limit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", limit))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// SecureCookiesEnabled returns the parsed SecureCookies flag.
func (c *Config) SecureCookiesEnabled() bool {
	v, _ := strconv.ParseBool(c.SecureCookies)
	return v
}

// ProfileTTL returns the parsed profile cache TTL.
func (c *Config) ProfileTTL() time.Duration {
	d, err := time.ParseDuration(c.ProfileCacheTTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// RateLimit returns the parsed per-minute request cap.
func (c *Config) RateLimit() int {
	n, err := strconv.Atoi(c.RateLimitPerMinute)
	if err != nil {
		return 120
	}
	return n
}
