package bhtsne

import (
	"math"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

// Optimiser settings passed to tsne_run_double. They match the Go engine.
const (
	EarlyExaggeration      = 12.0
	EarlyExaggerationIters = 250
	LearningRate           = 200.0

	distanceSquaredEuclidean = 1

	// MaxBarnesHutDims bounds no_dims when theta > 0; the split tree has
	// 2^no_dims children per cell.
	MaxBarnesHutDims = 3
)

// Preflight rejects requests the native library would abort the process on.
func Preflight(req *tsne.Request) error {
	if req == nil || len(req.X) == 0 {
		return errors.New("empty data")
	}
	if req.Rows*req.Cols != len(req.X) {
		return errors.Newf("data length %d != rows %d * cols %d", len(req.X), req.Rows, req.Cols)
	}
	if req.TargetDims < 1 {
		return errors.Newf("target dimensionality must be positive, got %d", req.TargetDims)
	}
	if req.Theta > 0 && req.TargetDims > MaxBarnesHutDims {
		return errors.WithHint(
			errors.Newf("Barnes-Hut supports at most %d output dimensions, got %d", MaxBarnesHutDims, req.TargetDims),
			"use theta = 0 for high target dimensionality")
	}
	if math.IsNaN(req.Perplexity) || req.Perplexity <= 0 {
		return errors.Newf("perplexity must be positive, got %v", req.Perplexity)
	}
	if float64(req.Rows-1) < 3*req.Perplexity {
		return errors.WithHintf(
			errors.Newf("perplexity %v is too large for the number of samples (%d)", req.Perplexity, req.Rows),
			"perplexity must be at most %v", float64(req.Rows-1)/3)
	}
	if math.IsNaN(req.Theta) || req.Theta < 0 || req.Theta > 1 {
		return errors.Newf("theta must be in [0,1], got %v", req.Theta)
	}
	if req.NumThreads < 1 || req.MaxIter < 1 {
		return errors.Newf("threads and iterations must be positive, got %d and %d", req.NumThreads, req.MaxIter)
	}
	return nil
}
