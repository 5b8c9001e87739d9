package config

import "time"

// HTTPConfig contains console server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the console server to. Loopback by default since
	// the server acts with the stored session's credentials.
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = "127.0.0.1:8080"
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// NavigationConfig controls how navigation requests from the session core are delivered.
type NavigationConfig struct {
	// CoalesceWindow drops a repeat of the same target within this window, so several
	// teardown sites firing together produce one redirect.
	CoalesceWindow time.Duration `env:"NAVIGATION_COALESCE_WINDOW" envDefault:"1s"`
}

// Sanitize restores a non-positive window to the default.
func (n *NavigationConfig) Sanitize() {
	if n.CoalesceWindow <= 0 {
		n.CoalesceWindow = time.Second
	}
}
