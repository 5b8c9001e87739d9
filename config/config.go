package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - api.go: Inventory backend client configuration
//   - storage.go: Session storage backend selection
//   - database.go: Postgres and Redis connection configuration
//   - http.go: Console server and navigation configuration
//   - observability.go: Metrics configuration
//   - log.go: Logger configuration
type AppConfig struct {
	// Inventory backend configuration
	API APIConfig

	// Session storage configuration
	Storage StorageConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Console server configuration
	HTTP       HTTPConfig
	Navigation NavigationConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Logging configuration
	Log LogConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Storage.Sanitize()
	c.HTTP.Sanitize()
	c.Navigation.Sanitize()
	c.Observability.Sanitize()
	c.Log.Sanitize()
}

// Validate reports configuration that cannot work at all. Call it after Sanitize.
func (c *AppConfig) Validate() error {
	return c.API.Validate()
}
