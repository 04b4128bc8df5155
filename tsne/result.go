package tsne

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"
)

// EmbeddingKey names the embedding matrix in AsMap output, as in the
// list Rtsne returns in R.
const EmbeddingKey = "Y"

// Dims returns the shape of the embedding, or 0, 0 when there is none.
func (r *Result) Dims() (rows, cols int) {
	if r == nil || r.Embedding == nil || r.Embedding.IsEmpty() {
		return 0, 0
	}
	return r.Embedding.Dims()
}

// Rows returns the embedding as a slice of rows.
func (r *Result) Rows() [][]float64 {
	rows, cols := r.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		copy(out[i], r.Embedding.RawRowView(i))
	}
	return out
}

// Cost returns the final cost diagnostic if the routine reported one.
func (r *Result) Cost() (float64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r.Diagnostics[DiagCost].(float64)
	return v, ok
}

// Iterations returns the number of iterations the routine reported.
func (r *Result) Iterations() (int, bool) {
	if r == nil {
		return 0, false
	}
	switch v := r.Diagnostics[DiagIterations].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// AsMap returns the bundle as a dictionary with the embedding under "Y" and
// every diagnostic under its own key. Values are JSON and structpb friendly.
func (r *Result) AsMap() map[string]any {
	out := make(map[string]any, len(r.Diagnostics)+1)
	for k, v := range r.Diagnostics {
		out[k] = plain(v)
	}
	rows := r.Rows()
	y := make([]any, len(rows))
	for i, row := range rows {
		y[i] = plain(row)
	}
	out[EmbeddingKey] = y
	return out
}

// AsStruct returns the bundle as a protobuf Struct.
func (r *Result) AsStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(r.AsMap())
}

// MarshalJSON encodes the bundle in its AsMap form.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.AsMap())
}

// plain converts typed slices to []any so structpb accepts them.
func plain(v any) any {
	switch x := v.(type) {
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case [][]float64:
		out := make([]any, len(x))
		for i, row := range x {
			out[i] = plain(row)
		}
		return out
	case int32:
		return int(x)
	default:
		return v
	}
}
