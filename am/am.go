// Package am loads rtsne configuration ("am" as in "I am configured as...").
//
// Values come from built-in defaults, then /etc/rtsne/am.toml, ~/.rtsne/am.toml,
// the nearest am.toml above the working directory, and finally RTSNE_*
// environment variables.
package am

// Config represents the rtsne configuration
type Config struct {
	Embedding EmbeddingConfig `mapstructure:"embedding" toml:"embedding" yaml:"embedding" json:"embedding"`
	Database  DatabaseConfig  `mapstructure:"database" toml:"database" yaml:"database" json:"database"`
	Server    ServerConfig    `mapstructure:"server" toml:"server" yaml:"server" json:"server"`
	Log       LogConfig       `mapstructure:"log" toml:"log" yaml:"log" json:"log"`
}

// EmbeddingConfig holds the default parameters for an embedding call.
// Callers may override any of them per call.
type EmbeddingConfig struct {
	Dims       int     `mapstructure:"dims" toml:"dims" yaml:"dims" json:"dims"`
	Perplexity float64 `mapstructure:"perplexity" toml:"perplexity" yaml:"perplexity" json:"perplexity"`
	Theta      float64 `mapstructure:"theta" toml:"theta" yaml:"theta" json:"theta"`
	Threads    int     `mapstructure:"threads" toml:"threads" yaml:"threads" json:"threads"` // 0 = all logical CPUs
	MaxIter    int     `mapstructure:"max_iter" toml:"max_iter" yaml:"max_iter" json:"max_iter"`
	Backend    string  `mapstructure:"backend" toml:"backend" yaml:"backend" json:"backend"` // go | native
	Seed       int64   `mapstructure:"seed" toml:"seed" yaml:"seed" json:"seed"`
}

// DatabaseConfig configures the SQLite run history
type DatabaseConfig struct {
	Path       string `mapstructure:"path" toml:"path" yaml:"path" json:"path"`
	RecordRuns bool   `mapstructure:"record_runs" toml:"record_runs" yaml:"record_runs" json:"record_runs"`
}

// ServerConfig configures the HTTP and gRPC listeners
type ServerConfig struct {
	Port              int      `mapstructure:"port" toml:"port" yaml:"port" json:"port"`
	GRPCPort          int      `mapstructure:"grpc_port" toml:"grpc_port" yaml:"grpc_port" json:"grpc_port"`                                         // 0 = disabled
	RequestsPerMinute int      `mapstructure:"requests_per_minute" toml:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"` // 0 = unlimited
	AllowedOrigins    []string `mapstructure:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

// LogConfig configures logger output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" yaml:"json" json:"json"`
}

// Backend names
const (
	BackendGo     = "go"
	BackendNative = "native"
)

// Server port constants
const (
	DefaultServerPort = 8770
	DefaultGRPCPort   = 8771
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// ConfigFileName is the file searched for in project directories
const ConfigFileName = "am.toml"
