// Package service is the one place outer surfaces (CLI, HTTP, WebSocket,
// gRPC, MCP) run an embedding. It builds a binding per call, applies the
// configured defaults and records the outcome in the run history.
package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/db"
	"github.com/teranos/rtsne/engine"
	"github.com/teranos/rtsne/internal/backend"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/runs"
	"github.com/teranos/rtsne/tsne"
)

// Sources recorded with each run.
const (
	SourceCLI       = "cli"
	SourceHTTP      = "http"
	SourceWebSocket = "ws"
	SourceGRPC      = "grpc"
	SourceMCP       = "mcp"
)

// Outcome is a finished call.
type Outcome struct {
	Result   *tsne.Result
	RunID    string // empty when runs are not recorded
	Duration time.Duration
}

// Service runs embeddings. It is safe for concurrent use.
type Service struct {
	backend  *backend.Backend
	store    *runs.Store
	logger   *zap.SugaredLogger
	defaults atomic.Pointer[tsne.Params]
}

// New creates a service. store may be nil to disable run history.
func New(b *backend.Backend, store *runs.Store, defaults tsne.Params, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = logger.ComponentLogger("service")
	}
	s := &Service{backend: b, store: store, logger: log}
	s.SetDefaults(defaults)
	return s
}

// Backend returns the configured backend.
func (s *Service) Backend() *backend.Backend { return s.backend }

// Runs returns the run store, or nil when history is disabled.
func (s *Service) Runs() *runs.Store { return s.store }

// Defaults returns the parameters used for arguments a caller leaves out.
func (s *Service) Defaults() tsne.Params { return *s.defaults.Load() }

// SetDefaults replaces the defaults for subsequent calls.
func (s *Service) SetDefaults(p tsne.Params) {
	s.defaults.Store(&p)
}

// Embed converts loosely typed args, filling missing scalars from the
// defaults, and runs the embedding.
func (s *Service) Embed(ctx context.Context, args map[string]any, source string, progress engine.ProgressFunc) (*Outcome, error) {
	defaults := s.Defaults()
	call, err := tsne.ConvertArgs(args, &defaults)
	if err != nil {
		s.record(ctx, nil, defaults, source, nil, err, 0)
		return nil, err
	}
	return s.EmbedCall(ctx, call, source, progress)
}

// EmbedCall runs an already converted call.
func (s *Service) EmbedCall(ctx context.Context, call *tsne.Call, source string, progress engine.ProgressFunc) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := s.logger
	if fields := logger.FieldsFromContext(ctx); len(fields) > 0 {
		log = log.With(fields...)
	}

	bind := tsne.New(s.backend.Embedder(progress), tsne.WithLogger(log))

	start := time.Now()
	res, err := bind.Run(call)
	elapsed := time.Since(start)

	var x mat.Matrix
	var params tsne.Params
	if call != nil {
		params = call.Params
		if call.Matrix != nil {
			x = call.Matrix
		}
	}
	runID := s.record(ctx, x, params, source, res, err, elapsed)

	if err != nil {
		log.Infow("Embedding failed",
			logger.FieldRunID, runID,
			logger.FieldBackend, s.backend.Name(),
			logger.FieldError, err,
			logger.FieldDurationMS, elapsed.Milliseconds())
		return nil, err
	}

	cost, _ := res.Cost()
	rows, _ := res.Dims()
	log.Infow("Embedding finished",
		logger.FieldRunID, runID,
		logger.FieldBackend, s.backend.Name(),
		logger.FieldRows, rows,
		logger.FieldCost, cost,
		logger.FieldDurationMS, elapsed.Milliseconds())

	return &Outcome{Result: res, RunID: runID, Duration: elapsed}, nil
}

// record saves the call when history is enabled. A storage failure is logged
// and never fails the call. A closed database is expected during shutdown.
func (s *Service) record(ctx context.Context, x mat.Matrix, p tsne.Params, source string, res *tsne.Result, callErr error, d time.Duration) string {
	if s.store == nil {
		return ""
	}
	rec := runs.NewRecord(x, p, s.backend.Name(), source, res, callErr, d)
	if err := s.store.Save(ctx, rec); err != nil {
		if db.IsDatabaseClosed(err) {
			s.logger.Debugw("Run history closed, run not recorded", logger.FieldError, err)
			return ""
		}
		s.logger.Warnw("Failed to record run", logger.FieldError, err)
		return ""
	}
	return rec.ID
}
