// Package backend selects the routine behind the binding from configuration.
package backend

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/teranos/rtsne/am"
	"github.com/teranos/rtsne/bhtsne"
	"github.com/teranos/rtsne/engine"
	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/tsne"
)

// Backend is a configured routine. The Go engine is created per call so each
// call can carry its own progress callback.
type Backend struct {
	name   string
	seed   int64
	logger *zap.SugaredLogger
	native *bhtsne.Native
}

// logicalCPUs is replaced in tests.
var logicalCPUs = func() (int, error) { return cpu.Counts(true) }

// Open prepares the backend named by cfg.Backend.
func Open(cfg am.EmbeddingConfig, log *zap.SugaredLogger) (*Backend, error) {
	if log == nil {
		log = logger.ComponentLogger("backend")
	}
	name := cfg.Backend
	if name == "" {
		name = am.BackendGo
	}

	b := &Backend{name: name, seed: cfg.Seed, logger: log}
	switch name {
	case am.BackendGo:
	case am.BackendNative:
		native, err := bhtsne.New(int(cfg.Seed), log.Named("bhtsne"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to open native backend")
		}
		b.native = native
	default:
		return nil, errors.WithHintf(
			errors.NewInvalidRequestError("unknown backend %q", name),
			"use %q or %q", am.BackendGo, am.BackendNative)
	}

	log.Debugw("Backend ready", logger.FieldBackend, name)
	return b, nil
}

// Name returns the backend name.
func (b *Backend) Name() string { return b.name }

// SupportsProgress reports whether Embedder honours a progress callback.
func (b *Backend) SupportsProgress() bool { return b.native == nil }

// Embedder returns the routine for one call. progress may be nil and is
// ignored by the native backend.
func (b *Backend) Embedder(progress engine.ProgressFunc) tsne.Embedder {
	if b.native != nil {
		return b.native
	}
	return engine.New(
		engine.WithSeed(b.seed),
		engine.WithLogger(b.logger.Named("engine")),
		engine.WithProgress(progress),
	)
}

// ResolveThreads maps a non-positive thread count to the number of logical
// CPUs, never returning less than 1.
func ResolveThreads(n int) int {
	if n > 0 {
		return n
	}
	count, err := logicalCPUs()
	if err != nil || count < 1 {
		return 1
	}
	return count
}

// DefaultParams converts configured defaults into call parameters.
func DefaultParams(cfg am.EmbeddingConfig) tsne.Params {
	return tsne.Params{
		TargetDims: cfg.Dims,
		Perplexity: cfg.Perplexity,
		Theta:      cfg.Theta,
		NumThreads: ResolveThreads(cfg.Threads),
		MaxIter:    cfg.MaxIter,
	}
}
