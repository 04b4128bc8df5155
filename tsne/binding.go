package tsne

import (
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/logger"
)

// Binding exposes a native routine through RunEmbedding.
// It holds no per-call state and is safe for concurrent use.
type Binding struct {
	native Embedder
	logger *zap.SugaredLogger
}

// Option configures a Binding.
type Option func(*Binding)

// WithLogger sets the logger used for call tracing.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(b *Binding) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a binding that delegates to native.
func New(native Embedder, opts ...Option) *Binding {
	b := &Binding{
		native: native,
		logger: logger.ComponentLogger("tsne"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunEmbedding converts its arguments, calls the routine once and returns
// the routine's result bundle.
//
// Conversion failures return ErrArgumentType before the routine runs. Routine
// failures are returned with their message intact and marked
// ErrNativeComputation. Ownership of the result passes to the caller.
func (b *Binding) RunEmbedding(x mat.Matrix, targetDims int, perplexity, theta float64, numThreads, maxIter int) (*Result, error) {
	if b.native == nil {
		return nil, errors.NewUnavailableError("no t-SNE routine configured")
	}

	req, err := newRequest(x, targetDims, perplexity, theta, numThreads, maxIter)
	if err != nil {
		return nil, err
	}

	b.logger.Debugw("Invoking t-SNE routine",
		logger.FieldRows, req.Rows,
		logger.FieldCols, req.Cols,
		logger.FieldDims, req.TargetDims,
		logger.FieldPerplexity, req.Perplexity,
		logger.FieldTheta, req.Theta,
		logger.FieldThreads, req.NumThreads,
		logger.FieldMaxIter, req.MaxIter)

	start := time.Now()
	result, err := b.embed(req)
	elapsed := time.Since(start)

	if err != nil {
		b.logger.Debugw("t-SNE routine failed",
			logger.FieldError, err,
			logger.FieldDurationMS, elapsed.Milliseconds())
		return nil, nativeError(err)
	}
	if result == nil {
		return nil, nativeError(errors.New("routine returned no result"))
	}

	b.logger.Debugw("t-SNE routine returned",
		logger.FieldDurationMS, elapsed.Milliseconds())
	return result, nil
}

// embed calls the routine, turning a panic into an error so a bad call
// cannot take down a long-running server.
func (b *Binding) embed(req *Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("t-SNE routine panicked", "panic", r)
			result, err = nil, errors.Newf("routine panicked: %v", r)
		}
	}()
	return b.native.Embed(req)
}

// Run is RunEmbedding for an already converted Call.
func (b *Binding) Run(call *Call) (*Result, error) {
	if call == nil {
		return nil, argumentError(ArgMatrix, "no arguments supplied")
	}
	return b.RunEmbedding(call.Matrix, call.TargetDims, call.Perplexity, call.Theta, call.NumThreads, call.MaxIter)
}

// RunEmbeddingArgs converts loosely typed arguments with ConvertArgs and runs
// the embedding. defaults may be nil, in which case all six are required.
func (b *Binding) RunEmbeddingArgs(args map[string]any, defaults *Params) (*Result, error) {
	call, err := ConvertArgs(args, defaults)
	if err != nil {
		return nil, err
	}
	return b.Run(call)
}
