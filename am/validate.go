package am

import (
	"slices"

	"github.com/teranos/rtsne/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	e := c.Embedding
	if e.Dims < 1 {
		return errors.Newf("embedding.dims must be >= 1, got %d", e.Dims)
	}
	if e.Perplexity <= 0 {
		return errors.Newf("embedding.perplexity must be > 0, got %g", e.Perplexity)
	}
	if e.Theta < 0 || e.Theta > 1 {
		return errors.Newf("embedding.theta must be in [0,1], got %g", e.Theta)
	}
	// Threads: 0 = all logical CPUs, negative = invalid
	if e.Threads < 0 {
		return errors.Newf("embedding.threads must be >= 0, got %d", e.Threads)
	}
	if e.MaxIter < 1 {
		return errors.Newf("embedding.max_iter must be >= 1, got %d", e.MaxIter)
	}
	if e.Backend != "" && !slices.Contains([]string{BackendGo, BackendNative}, e.Backend) {
		return errors.WithHintf(
			errors.Newf("embedding.backend %q is not supported", e.Backend),
			"use %q or %q", BackendGo, BackendNative)
	}

	// Server port: 0 is invalid, negative is invalid
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	// gRPC port: 0 = disabled
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return errors.Newf("server.grpc_port must be in 0..65535, got %d", c.Server.GRPCPort)
	}
	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		return errors.Newf("server.grpc_port must differ from server.port (%d)", c.Server.Port)
	}
	// Rate limit: 0 = unlimited
	if c.Server.RequestsPerMinute < 0 {
		return errors.Newf("server.requests_per_minute must be >= 0, got %d", c.Server.RequestsPerMinute)
	}

	return nil
}
