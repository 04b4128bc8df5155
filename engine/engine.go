// Package engine is a pure Go t-SNE routine. It implements tsne.Embedder with
// exact gradients when theta is 0 and the Barnes-Hut approximation otherwise.
package engine

import (
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/tsne"
)

const (
	learningRate       = 200.0
	initialMomentum    = 0.5
	finalMomentum      = 0.8
	momentumSwitchIter = 250
	stopLyingIter      = 250
	exaggeration       = 12.0
	costEvery          = 50
	minGain            = 0.01
	initScale          = 1e-4

	// MaxBarnesHutDims bounds the output dimensionality with theta > 0. Each
	// space-partitioning cell splits into 2^dims children.
	MaxBarnesHutDims = 3

	// DefaultSeed seeds the initial layout when no seed is configured.
	DefaultSeed int64 = 42
)

// ProgressFunc receives the iteration count and total cost every time the
// cost is evaluated.
type ProgressFunc func(iter int, cost float64)

// Engine runs t-SNE. A zero Engine is not usable; call New.
type Engine struct {
	seed        int64
	logger      *zap.SugaredLogger
	progress    ProgressFunc
	memoryProbe func() (uint64, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed sets the seed for the random initial layout.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProgress registers fn to observe optimisation progress.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		seed:        DefaultSeed,
		logger:      logger.ComponentLogger("engine"),
		memoryProbe: availableMemory,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ tsne.Embedder = (*Engine)(nil)

// Embed runs the optimisation described by req.
func (e *Engine) Embed(req *tsne.Request) (*tsne.Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	n, d, nd := req.Rows, req.Cols, int(req.TargetDims)
	threads := min(int(req.NumThreads), n)
	exact := req.Theta == 0
	maxIter := int(req.MaxIter)

	if exact {
		if err := e.checkExactMemory(n); err != nil {
			return nil, err
		}
	}

	log := e.logger.With(
		logger.FieldRows, n,
		logger.FieldCols, d,
		logger.FieldDims, nd,
		logger.FieldThreads, threads)
	start := time.Now()

	x := normalize(req.X, n, d)

	var p affinities
	if exact {
		log.Debugw("Computing exact input similarities", logger.FieldPerplexity, req.Perplexity)
		p = exactAffinities(x, n, d, req.Perplexity, threads)
	} else {
		k := neighbourCount(req.Perplexity, n)
		log.Debugw("Computing sparse input similarities",
			logger.FieldPerplexity, req.Perplexity,
			"neighbours", k)
		p = sparseAffinities(x, n, d, req.Perplexity, k, threads, rand.New(rand.NewSource(e.seed)))
	}

	y := initialLayout(n, nd, rand.New(rand.NewSource(e.seed)))
	opt := &optimizer{
		n:       n,
		dims:    nd,
		theta:   req.Theta,
		threads: threads,
		p:       p,
		y:       y,
	}

	itercosts := e.optimize(opt, maxIter, log)
	costs := opt.pointCosts()
	total := floats.Sum(costs)

	log.Debugw("t-SNE finished",
		logger.FieldCost, total,
		logger.FieldIterations, maxIter,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return &tsne.Result{
		Embedding: mat.NewDense(n, nd, opt.y),
		Diagnostics: map[string]any{
			tsne.DiagCosts:      costs,
			tsne.DiagIterCosts:  itercosts,
			tsne.DiagCost:       total,
			tsne.DiagIterations: maxIter,
			tsne.DiagN:          n,
			tsne.DiagOrigD:      d,
			tsne.DiagPerplexity: req.Perplexity,
			tsne.DiagTheta:      req.Theta,
			tsne.DiagNumThreads: threads,
			tsne.DiagExact:      exact,
		},
	}, nil
}

// optimize runs gradient descent with momentum and per-coordinate gains.
// It returns the total cost recorded every costEvery iterations and at the
// last iteration.
func (e *Engine) optimize(o *optimizer, maxIter int, log *zap.SugaredLogger) []float64 {
	size := o.n * o.dims
	grad := make([]float64, size)
	update := make([]float64, size)
	gains := make([]float64, size)
	for i := range gains {
		gains[i] = 1
	}

	o.p.scale(exaggeration)
	lying := true
	momentum := initialMomentum
	itercosts := make([]float64, 0, maxIter/costEvery+1)

	for iter := 0; iter < maxIter; iter++ {
		o.gradient(grad)

		for i := range grad {
			if sign(grad[i]) != sign(update[i]) {
				gains[i] += 0.2
			} else {
				gains[i] *= 0.8
			}
			if gains[i] < minGain {
				gains[i] = minGain
			}
			update[i] = momentum*update[i] - learningRate*gains[i]*grad[i]
			o.y[i] += update[i]
		}
		zeroMean(o.y, o.n, o.dims)

		if iter == stopLyingIter {
			o.p.scale(1 / exaggeration)
			lying = false
		}
		if iter == momentumSwitchIter {
			momentum = finalMomentum
		}

		if (iter+1)%costEvery == 0 || iter == maxIter-1 {
			c := o.totalCost()
			itercosts = append(itercosts, c)
			log.Debugw("Iteration", logger.FieldIterations, iter+1, logger.FieldCost, c)
			if e.progress != nil {
				e.progress(iter+1, c)
			}
		}
	}

	if lying {
		o.p.scale(1 / exaggeration)
	}
	return itercosts
}

func validate(req *tsne.Request) error {
	if req == nil {
		return errors.New("no input supplied")
	}
	n, d := req.Rows, req.Cols
	if n < 1 || d < 1 || len(req.X) != n*d {
		return errors.Newf("input has %d values, expected %d rows x %d columns", len(req.X), n, d)
	}
	if req.TargetDims < 1 {
		return errors.Newf("target dimensionality must be positive, got %d", req.TargetDims)
	}
	if math.IsNaN(req.Perplexity) || req.Perplexity <= 0 {
		return errors.Newf("perplexity must be positive, got %v", req.Perplexity)
	}
	if float64(n-1) <= req.Perplexity {
		return errors.WithHintf(
			errors.Newf("perplexity %v is too large for the number of samples (%d)", req.Perplexity, n),
			"perplexity must be smaller than %d", n-1)
	}
	if math.IsNaN(req.Theta) || req.Theta < 0 || req.Theta > 1 {
		return errors.Newf("theta must be in [0,1], got %v", req.Theta)
	}
	if req.Theta > 0 && req.TargetDims > MaxBarnesHutDims {
		return errors.WithHint(
			errors.Newf("Barnes-Hut supports at most %d output dimensions, got %d", MaxBarnesHutDims, req.TargetDims),
			"use theta = 0 for high target dimensionality")
	}
	if req.NumThreads < 1 {
		return errors.Newf("number of threads must be positive, got %d", req.NumThreads)
	}
	if req.MaxIter < 1 {
		return errors.Newf("maximum iterations must be positive, got %d", req.MaxIter)
	}
	for _, v := range req.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("input contains non-finite values")
		}
	}
	return nil
}

// neighbourCount is the number of nearest neighbours kept per point in
// Barnes-Hut mode.
func neighbourCount(perplexity float64, n int) int {
	k := int(3 * perplexity)
	if k > n-1 {
		k = n - 1
	}
	if k < 1 {
		k = 1
	}
	return k
}

// normalize returns a copy of x with zero column means, scaled so the largest
// absolute value is 1.
func normalize(x []float64, n, d int) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	zeroMean(out, n, d)
	maxAbs := 0.0
	for _, v := range out {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	if maxAbs > 0 {
		floats.Scale(1/maxAbs, out)
	}
	return out
}

func zeroMean(x []float64, n, d int) {
	mean := make([]float64, d)
	for i := 0; i < n; i++ {
		floats.Add(mean, x[i*d:(i+1)*d])
	}
	floats.Scale(1/float64(n), mean)
	for i := 0; i < n; i++ {
		floats.Sub(x[i*d:(i+1)*d], mean)
	}
}

func initialLayout(n, dims int, rng *rand.Rand) []float64 {
	y := make([]float64, n*dims)
	for i := range y {
		y[i] = rng.NormFloat64() * initScale
	}
	return y
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return s
}
