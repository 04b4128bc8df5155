package tsne_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/engine"
	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

// recorder is a stand-in routine that records what it was given.
type recorder struct {
	mu    sync.Mutex
	calls int
	last  *tsne.Request
	err   error
	// scribble overwrites the request buffer to prove it is a copy.
	scribble bool
}

func (r *recorder) Embed(req *tsne.Request) (*tsne.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = req
	if r.err != nil {
		return nil, r.err
	}
	if r.scribble {
		for i := range req.X {
			req.X[i] = -1
		}
	}
	return &tsne.Result{
		Embedding: mat.NewDense(req.Rows, int(req.TargetDims), nil),
		Diagnostics: map[string]any{
			tsne.DiagCost:       0.5,
			tsne.DiagIterations: int(req.MaxIter),
		},
	}, nil
}

func sample() *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12,
	})
}

func TestRunEmbedding_PassesArguments(t *testing.T) {
	rec := &recorder{}
	b := tsne.New(rec)

	theta := 0.1 + 0.2 // not exactly representable as 0.3
	res, err := b.RunEmbedding(sample(), 2, 1.5, theta, 3, 250)
	require.NoError(t, err)
	require.Equal(t, 1, rec.calls)

	req := rec.last
	assert.Equal(t, 4, req.Rows)
	assert.Equal(t, 3, req.Cols)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, req.X)
	assert.Equal(t, int32(2), req.TargetDims)
	assert.Equal(t, 1.5, req.Perplexity)
	assert.Equal(t, math.Float64bits(theta), math.Float64bits(req.Theta))
	assert.Equal(t, int32(3), req.NumThreads)
	assert.Equal(t, int32(250), req.MaxIter)

	rows, cols := res.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2, cols)
	iters, ok := res.Iterations()
	require.True(t, ok)
	assert.Equal(t, 250, iters)
}

func TestRunEmbedding_DoesNotMutateCaller(t *testing.T) {
	x := sample()
	before := mat.DenseCopyOf(x)

	_, err := tsne.New(&recorder{scribble: true}).RunEmbedding(x, 2, 1, 0.5, 1, 10)
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, x))
}

func TestRunEmbedding_NonDenseMatrix(t *testing.T) {
	rec := &recorder{}
	_, err := tsne.New(rec).RunEmbedding(sample().T(), 2, 1, 0.5, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.last.Rows)
	assert.Equal(t, 4, rec.last.Cols)
	assert.Equal(t, []float64{1, 4, 7, 10}, rec.last.X[:4])
}

func TestRunEmbedding_ArgumentErrors(t *testing.T) {
	var nilDense *mat.Dense
	nanMatrix := sample()
	nanMatrix.Set(1, 1, math.NaN())

	tests := []struct {
		name    string
		x       mat.Matrix
		dims    int
		threads int
		iters   int
		arg     string
	}{
		{"nil matrix", nil, 2, 1, 10, tsne.ArgMatrix},
		{"typed nil matrix", nilDense, 2, 1, 10, tsne.ArgMatrix},
		{"empty matrix", &mat.Dense{}, 2, 1, 10, tsne.ArgMatrix},
		{"non-finite element", nanMatrix, 2, 1, 10, tsne.ArgMatrix},
		{"dims overflow", sample(), math.MaxInt32 + 1, 1, 10, tsne.ArgTargetDims},
		{"threads overflow", sample(), 2, math.MinInt32 - 1, 10, tsne.ArgNumThreads},
		{"iterations overflow", sample(), 2, 1, math.MaxInt32 + 1, tsne.ArgMaxIter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			_, err := tsne.New(rec).RunEmbedding(tt.x, tt.dims, 1, 0.5, tt.threads, tt.iters)
			require.Error(t, err)
			assert.True(t, tsne.IsArgumentTypeError(err))
			assert.False(t, tsne.IsNativeComputationError(err))
			assert.Zero(t, rec.calls, "routine must not run")

			var ate *tsne.ArgumentTypeError
			require.True(t, errors.As(err, &ate))
			assert.Equal(t, tt.arg, ate.Arg)
		})
	}
}

func TestRunEmbedding_NativeErrorPreserved(t *testing.T) {
	rec := &recorder{err: errors.New("Perplexity too large for the number of data points!")}
	_, err := tsne.New(rec).RunEmbedding(sample(), 2, 50, 0.5, 1, 10)

	require.Error(t, err)
	assert.Equal(t, "Perplexity too large for the number of data points!", err.Error())
	assert.True(t, tsne.IsNativeComputationError(err))
	assert.False(t, tsne.IsArgumentTypeError(err))

	var nce *tsne.NativeComputationError
	require.True(t, errors.As(err, &nce))
	assert.Equal(t, rec.err, nce.Err)
}

type panicking struct{}

func (panicking) Embed(*tsne.Request) (*tsne.Result, error) {
	panic("runtime error: makeslice: len out of range")
}

func TestRunEmbedding_RoutinePanicIsNativeError(t *testing.T) {
	_, err := tsne.New(panicking{}).RunEmbedding(sample(), 2, 1, 0.5, 1, 10)
	require.Error(t, err)
	assert.True(t, tsne.IsNativeComputationError(err))
	assert.Contains(t, err.Error(), "makeslice")
}

func TestRunEmbedding_NilResult(t *testing.T) {
	b := tsne.New(tsne.EmbedderFunc(func(*tsne.Request) (*tsne.Result, error) { return nil, nil }))
	_, err := b.RunEmbedding(sample(), 2, 1, 0.5, 1, 10)
	require.Error(t, err)
	assert.True(t, tsne.IsNativeComputationError(err))
}

func TestRunEmbedding_NoRoutine(t *testing.T) {
	_, err := tsne.New(nil).RunEmbedding(sample(), 2, 1, 0.5, 1, 10)
	require.Error(t, err)
	assert.True(t, errors.IsServiceUnavailableError(err))
}

func TestRunEmbedding_Concurrent(t *testing.T) {
	b := tsne.New(tsne.EmbedderFunc(func(req *tsne.Request) (*tsne.Result, error) {
		y := mat.NewDense(req.Rows, int(req.TargetDims), nil)
		for i := 0; i < req.Rows; i++ {
			y.Set(i, 0, req.X[i*req.Cols])
		}
		return &tsne.Result{Embedding: y, Diagnostics: map[string]any{}}, nil
	}))

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x := mat.NewDense(3, 2, []float64{float64(g), 0, float64(g), 0, float64(g), 0})
			res, err := b.RunEmbedding(x, 2, 1, 0.5, 1, 10)
			assert.NoError(t, err)
			assert.Equal(t, float64(g), res.Embedding.At(2, 0))
		}()
	}
	wg.Wait()
}

func TestRunEmbedding_WithEngine(t *testing.T) {
	data := make([]float64, 0, 40*3)
	for i := 0; i < 40; i++ {
		c := float64(i % 2 * 10)
		data = append(data, c+float64(i%5)*0.1, c-float64(i%7)*0.1, c+float64(i%3)*0.1)
	}
	b := tsne.New(engine.New())

	res, err := b.RunEmbedding(mat.NewDense(40, 3, data), 2, 5, 0.5, 2, 100)
	require.NoError(t, err)
	rows, cols := res.Dims()
	assert.Equal(t, 40, rows)
	assert.Equal(t, 2, cols)

	// The routine's own validation surfaces as a native error.
	_, err = b.RunEmbedding(mat.NewDense(40, 3, data), 2, 39, 0.5, 2, 100)
	require.Error(t, err)
	assert.True(t, tsne.IsNativeComputationError(err))
	assert.Contains(t, err.Error(), "perplexity 39 is too large")
}

func TestRunEmbeddingArgs(t *testing.T) {
	rec := &recorder{}
	b := tsne.New(rec)
	defaults := &tsne.Params{TargetDims: 2, Perplexity: 30, Theta: 0.5, NumThreads: 1, MaxIter: 1000}

	_, err := b.RunEmbeddingArgs(map[string]any{
		"X":          []any{[]any{1.0, 2.0}, []any{3.0, 4.0}},
		"perplexity": 1,
		"max_iter":   float64(20),
	}, defaults)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.last.Perplexity)
	assert.Equal(t, int32(20), rec.last.MaxIter)
	assert.Equal(t, 0.5, rec.last.Theta)
	assert.Equal(t, int32(2), rec.last.TargetDims)

	_, err = b.Run(nil)
	assert.True(t, tsne.IsArgumentTypeError(err))
}
