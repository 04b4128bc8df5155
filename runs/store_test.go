package runs

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/errors"
	testdb "github.com/teranos/rtsne/internal/testing"
	"github.com/teranos/rtsne/tsne"
)

var params = tsne.Params{TargetDims: 2, Perplexity: 5, Theta: 0.5, NumThreads: 2, MaxIter: 300}

func newStore(t *testing.T) *Store {
	return NewStore(testdb.CreateTestDB(t), zaptest.NewLogger(t).Sugar())
}

func succeeded(x *mat.Dense) *Record {
	res := &tsne.Result{
		Embedding: mat.NewDense(2, 2, []float64{0.5, -1, math.Pi, 1e-300}),
		Diagnostics: map[string]any{
			tsne.DiagCost:       1.25,
			tsne.DiagIterations: 300,
		},
	}
	return NewRecord(x, params, "go", "cli", res, nil, 1500*time.Millisecond)
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	rec := succeeded(x)
	require.NoError(t, s.Save(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, Fingerprint(x), got.Fingerprint)
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, 3, got.Cols)
	assert.Equal(t, params, got.Params)
	assert.Equal(t, StatusSucceeded, got.Status)
	require.NotNil(t, got.Cost)
	assert.Equal(t, 1.25, *got.Cost)
	require.NotNil(t, got.Iterations)
	assert.Equal(t, 300, *got.Iterations)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	// Embedding survives bit for bit.
	require.NotNil(t, got.Embedding)
	assert.Equal(t, rec.Embedding.RawMatrix().Data, got.Embedding.RawMatrix().Data)
}

func TestStore_DurationPrecision(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	d := 1234567891 * time.Nanosecond
	rec := NewRecord(mat.NewDense(1, 1, []float64{1}), params, "go", "http", nil, nil, d)
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, d, got.Duration)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration_ns":1234567891`)
}

func TestStore_FailedRun(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := NewRecord(nil, params, "go", "http", nil, errors.New("perplexity too large"), time.Millisecond)
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "perplexity too large", got.Error)
	assert.Nil(t, got.Cost)
	assert.Nil(t, got.Iterations)
	assert.Nil(t, got.Embedding)
}

func TestStore_GetNotFound(t *testing.T) {
	_, err := newStore(t).Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := mat.NewDense(1, 2, []float64{1, 2})
	b := mat.NewDense(1, 2, []float64{1, 3})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i, x := range []*mat.Dense{a, b, a} {
		rec := succeeded(x)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Save(ctx, rec))
		ids = append(ids, rec.ID)
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Nil(t, all[0].Embedding, "list omits embeddings")

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	same, err := s.ListByFingerprint(ctx, Fingerprint(a))
	require.NoError(t, err)
	require.Len(t, same, 2)
	assert.Equal(t, ids[2], same[0].ID)
	assert.Equal(t, ids[0], same[1].ID)

	require.NoError(t, s.Delete(ctx, ids[0]))
	err = s.Delete(ctx, ids[0])
	assert.True(t, errors.IsNotFoundError(err))

	all, err = s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_SaveNil(t *testing.T) {
	assert.Error(t, newStore(t).Save(context.Background(), nil))
}

func TestStore_DatabaseFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("save", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("disk I/O error"))
		err = NewStore(db, nil).Save(ctx, succeeded(mat.NewDense(1, 1, []float64{1})))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save run")
		assert.Contains(t, err.Error(), "disk I/O error")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT .* FROM runs ORDER BY").WithArgs(DefaultListLimit).
			WillReturnError(errors.New("database is locked"))
		_, err = NewStore(db, nil).List(ctx, -1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is locked")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete rows affected", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("DELETE FROM runs").WithArgs("abc").
			WillReturnResult(sqlmock.NewErrorResult(errors.New("no rows info")))
		err = NewStore(db, nil).Delete(ctx, "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no rows info")
	})

	t.Run("corrupt embedding", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		cols := []string{"id", "fingerprint", "n_rows", "n_cols", "target_dims", "perplexity", "theta",
			"num_threads", "max_iter", "backend", "source", "status", "error", "cost", "iterations",
			"duration_ns", "created_at", "embedding"}
		mock.ExpectQuery("SELECT .* FROM runs WHERE id").WithArgs("r1").WillReturnRows(
			sqlmock.NewRows(cols).AddRow("r1", "fp", 1, 1, 2, 5.0, 0.5, 1, 10, "go", "cli",
				"succeeded", "", nil, nil, 3, "2026-03-01T12:00:00.000000000Z", []byte{1, 2, 3}))

		_, err = NewStore(db, nil).Get(ctx, "r1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding blob too short")
	})
}

func TestFingerprint(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.Equal(t, Fingerprint(a), Fingerprint(mat.DenseCopyOf(a)))
	assert.Equal(t, Fingerprint(a), Fingerprint(a.T().T()))

	// Same values, different shape.
	assert.NotEqual(t, Fingerprint(a), Fingerprint(mat.NewDense(1, 4, []float64{1, 2, 3, 4})))
	// Signed zero differs bitwise.
	assert.NotEqual(t,
		Fingerprint(mat.NewDense(1, 1, []float64{0})),
		Fingerprint(mat.NewDense(1, 1, []float64{math.Copysign(0, -1)})))
}

func TestEmbeddingBlob(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{1, -2, 3.5, math.MaxFloat64, math.SmallestNonzeroFloat64, 0})
	got, err := decodeEmbedding(encodeEmbedding(m))
	require.NoError(t, err)
	assert.Equal(t, m.RawMatrix().Data, got.RawMatrix().Data)

	assert.Nil(t, encodeEmbedding(nil))
	got, err = decodeEmbedding(nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	blob := encodeEmbedding(m)
	_, err = decodeEmbedding(blob[:len(blob)-1])
	assert.Error(t, err)
}
