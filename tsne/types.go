package tsne

import (
	"gonum.org/v1/gonum/mat"
)

// Request is the input bundle in the routine's own parameter types.
// X is a row-major copy of the caller's matrix; the routine may use it as
// scratch space without affecting the caller.
type Request struct {
	X          []float64
	Rows       int
	Cols       int
	TargetDims int32
	Perplexity float64
	Theta      float64
	NumThreads int32
	MaxIter    int32
}

// Embedder is the native t-SNE routine behind the binding.
// Embed is called exactly once per RunEmbedding call.
type Embedder interface {
	Embed(req *Request) (*Result, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(req *Request) (*Result, error)

// Embed calls f(req).
func (f EmbedderFunc) Embed(req *Request) (*Result, error) { return f(req) }

// Diagnostic keys reported by the bundled routines. Other routines may report
// different keys; the binding forwards whatever it receives.
const (
	DiagCosts      = "costs"     // per-point KL divergence contribution
	DiagIterCosts  = "itercosts" // total cost every 50 iterations
	DiagCost       = "cost"      // final total cost
	DiagIterations = "iterations"
	DiagN          = "N"
	DiagOrigD      = "origD"
	DiagPerplexity = "perplexity"
	DiagTheta      = "theta"
	DiagNumThreads = "num_threads"
	DiagExact      = "exact"
)

// Result is the bundle returned by the routine: the low-dimensional
// embedding (rows x target dims) plus whatever diagnostics it reports.
type Result struct {
	Embedding   *mat.Dense
	Diagnostics map[string]any
}

// Params are the five scalar settings of a call.
type Params struct {
	TargetDims int     `json:"target_dims" toml:"target_dims" yaml:"target_dims"`
	Perplexity float64 `json:"perplexity" toml:"perplexity" yaml:"perplexity"`
	Theta      float64 `json:"theta" toml:"theta" yaml:"theta"`
	NumThreads int     `json:"num_threads" toml:"num_threads" yaml:"num_threads"`
	MaxIter    int     `json:"max_iter" toml:"max_iter" yaml:"max_iter"`
}

// Call is a fully converted set of arguments.
type Call struct {
	Matrix *mat.Dense
	Params
}
