package tsne

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sampleResult() *Result {
	return &Result{
		Embedding: mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4}),
		Diagnostics: map[string]any{
			DiagCosts:      []float64{0.25, 0.5},
			DiagIterCosts:  []float64{1.5},
			DiagCost:       0.75,
			DiagIterations: int32(50),
			DiagExact:      false,
		},
	}
}

func TestResult_AsMap(t *testing.T) {
	m := sampleResult().AsMap()

	assert.Equal(t, []any{[]any{0.1, 0.2}, []any{0.3, 0.4}}, m[EmbeddingKey])
	assert.Equal(t, []any{0.25, 0.5}, m[DiagCosts])
	assert.Equal(t, 50, m[DiagIterations])
	assert.Equal(t, false, m[DiagExact])
}

func TestResult_AsStruct(t *testing.T) {
	s, err := sampleResult().AsStruct()
	require.NoError(t, err)

	y := s.Fields[EmbeddingKey].GetListValue().GetValues()
	require.Len(t, y, 2)
	assert.Equal(t, 0.4, y[1].GetListValue().GetValues()[1].GetNumberValue())
	assert.Equal(t, 0.75, s.Fields[DiagCost].GetNumberValue())
	assert.Equal(t, 50.0, s.Fields[DiagIterations].GetNumberValue())
}

func TestResult_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "Y")
	assert.Contains(t, decoded, "itercosts")
}

func TestResult_Accessors(t *testing.T) {
	r := sampleResult()
	cost, ok := r.Cost()
	assert.True(t, ok)
	assert.Equal(t, 0.75, cost)

	iters, ok := r.Iterations()
	assert.True(t, ok)
	assert.Equal(t, 50, iters)

	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.3, 0.4}}, r.Rows())

	var empty *Result
	rows, cols := empty.Dims()
	assert.Zero(t, rows)
	assert.Zero(t, cols)
	_, ok = empty.Cost()
	assert.False(t, ok)
}
