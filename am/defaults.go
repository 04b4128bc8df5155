package am

import (
	"fmt"

	"github.com/spf13/viper"
)

var defaultAllowedOrigins = []string{
	"http://localhost",
	"https://localhost",
	"http://127.0.0.1",
	"https://127.0.0.1",
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Embedding defaults match the Rtsne R package
	v.SetDefault("embedding.dims", 2)
	v.SetDefault("embedding.perplexity", 30.0)
	v.SetDefault("embedding.theta", 0.5)
	v.SetDefault("embedding.threads", 0)
	v.SetDefault("embedding.max_iter", 1000)
	v.SetDefault("embedding.backend", BackendGo)
	v.SetDefault("embedding.seed", 42)

	// Database defaults
	v.SetDefault("database.path", "rtsne.db")
	v.SetDefault("database.record_runs", true)

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.grpc_port", DefaultGRPCPort)
	v.SetDefault("server.requests_per_minute", 30)
	v.SetDefault("server.allowed_origins", defaultAllowedOrigins)

	v.SetDefault("log.json", false)
}

// BindSensitiveEnvVars binds settings commonly overridden in deployment
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "RTSNE_DATABASE_PATH")
	v.BindEnv("embedding.backend", "RTSNE_BACKEND")
}

// Defaults returns the built-in configuration with no files or environment applied.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults are static; a failure here is a programming error
		panic(err)
	}
	return cfg
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "rtsne.db" // Fallback default
	}
	return c.Database.Path
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return defaultAllowedOrigins
	}
	return c.Server.AllowedOrigins
}

// GetBackend returns the configured backend (default: go)
func (c *Config) GetBackend() string {
	if c.Embedding.Backend == "" {
		return BackendGo
	}
	return c.Embedding.Backend
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Embedding: {Backend: %s, Dims: %d, Perplexity: %g, Theta: %g}, Database: %s, Server: {Port: %d}}",
		c.GetBackend(), c.Embedding.Dims, c.Embedding.Perplexity, c.Embedding.Theta,
		c.Database.Path, c.Server.Port)
}
