package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/teranos/rtsne/am"
	"github.com/teranos/rtsne/internal/backend"
	"github.com/teranos/rtsne/internal/service"
	testdb "github.com/teranos/rtsne/internal/testing"
	"github.com/teranos/rtsne/runs"
	"github.com/teranos/rtsne/tsne"
)

func startServer(t *testing.T) (*Client, *service.Service) {
	log := zaptest.NewLogger(t).Sugar()
	b, err := backend.Open(am.EmbeddingConfig{Backend: am.BackendGo}, log)
	require.NoError(t, err)
	store := runs.NewStore(testdb.CreateTestDB(t), log)
	svc := service.New(b, store, tsne.Params{TargetDims: 2, Perplexity: 3, Theta: 0.5, NumThreads: 2, MaxIter: 60}, log)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, lis, svc, log) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		assert.NoError(t, <-done)
	})
	return NewClient(conn), svc
}

func TestRunEmbedding(t *testing.T) {
	client, svc := startServer(t)
	ctx := context.Background()

	x := mat.NewDense(10, 3, nil)
	for i := 0; i < 10; i++ {
		x.SetRow(i, []float64{float64(i), float64(i % 2), float64(i % 5)})
	}

	resp, err := client.RunEmbedding(ctx, map[string]any{"matrix": x, "target_dims": 3})
	require.NoError(t, err)
	assert.Len(t, resp.Result[tsne.EmbeddingKey], 10)
	first := resp.Result[tsne.EmbeddingKey].([]any)[0].([]any)
	assert.Len(t, first, 3)
	assert.Equal(t, float64(60), resp.Result[tsne.DiagIterations])
	require.NotEmpty(t, resp.RunID)

	rec, err := svc.Runs().Get(ctx, resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, service.SourceGRPC, rec.Source)
}

func TestRunEmbedding_ErrorCodes(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	_, err := client.RunEmbedding(ctx, map[string]any{"matrix": "nope"})
	require.Error(t, err)
	assert.True(t, tsne.IsArgumentTypeError(err))
	assert.Contains(t, err.Error(), "argument matrix")

	_, err = client.RunEmbedding(ctx, map[string]any{
		"matrix":     [][]float64{{1, 2}, {3, 4}, {5, 6}},
		"perplexity": 5,
	})
	require.Error(t, err)
	assert.True(t, tsne.IsNativeComputationError(err))
	assert.Contains(t, err.Error(), "perplexity")
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{tsne.NewArgumentTypeError("theta", "bad"), codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{assert.AnError, codes.Internal},
	}
	for _, tt := range tests {
		st, ok := status.FromError(toStatus(tt.err))
		require.True(t, ok)
		assert.Equal(t, tt.code, st.Code())
		assert.Equal(t, tt.err.Error(), st.Message())
	}
}
