package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPITimeout    = 15 * time.Second
	defaultRevokeTimeout = 5 * time.Second
)

// APIConfig points the console at the inventory backend.
type APIConfig struct {
	// BaseURL is the backend origin; endpoint paths such as /api/auth/login are appended to it.
	BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:5000"`

	// Timeout bounds every outbound request, including refresh and identity checks.
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`

	// RevokeTimeout bounds the best-effort token revoke issued on logout.
	RevokeTimeout time.Duration `env:"API_REVOKE_TIMEOUT" envDefault:"5s"`
}

// Sanitize trims the base URL and restores non-positive timeouts to their defaults.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
	if c.RevokeTimeout <= 0 {
		c.RevokeTimeout = defaultRevokeTimeout
	}
}

// Validate requires an absolute http(s) base URL.
func (c *APIConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid API_BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API_BASE_URL %q: must use http or https scheme", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid API_BASE_URL %q: must have a valid host", c.BaseURL)
	}
	return nil
}
