package bhtsne

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		version string
		wantErr string
	}{
		{"0.1.0", ""},
		{"0.1.1", ""},
		{"v0.9.0", ""},
		{"0.0.9", "not supported"},
		{"1.0.0", "not supported"},
		{"garbage", "invalid native library version"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckCompatible(tt.version)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckCompatible_Hint(t *testing.T) {
	err := CheckCompatible("3.0.0")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), SupportedVersions)
}

func TestDefaultLibraryVersionSupported(t *testing.T) {
	assert.NoError(t, CheckCompatible(LibraryVersion))
}

func TestPreflight(t *testing.T) {
	valid := func() *tsne.Request {
		return &tsne.Request{
			X: make([]float64, 40), Rows: 20, Cols: 2,
			TargetDims: 2, Perplexity: 5, Theta: 0.5, NumThreads: 1, MaxIter: 10,
		}
	}
	require.NoError(t, Preflight(valid()))

	tests := []struct {
		name    string
		mutate  func(r *tsne.Request)
		wantMsg string
	}{
		{"nil data", func(r *tsne.Request) { r.X = nil }, "empty data"},
		{"shape mismatch", func(r *tsne.Request) { r.Rows = 19 }, "data length 40"},
		{"zero dims", func(r *tsne.Request) { r.TargetDims = 0 }, "target dimensionality"},
		{"barnes-hut high dims", func(r *tsne.Request) { r.TargetDims = 64 }, "at most 3 output dimensions"},
		{"perplexity too large", func(r *tsne.Request) { r.Perplexity = 7 }, "too large"},
		{"theta above one", func(r *tsne.Request) { r.Theta = 2 }, "theta must be in [0,1]"},
		{"zero threads", func(r *tsne.Request) { r.NumThreads = 0 }, "threads and iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			err := Preflight(req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	exact := valid()
	exact.TargetDims, exact.Theta = 64, 0
	assert.NoError(t, Preflight(exact), "exact mode has no dimensionality bound")
}
