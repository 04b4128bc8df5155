package runs

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/rtsne/db"
	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/logger"
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides database operations for run records
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a run store on a migrated database.
func NewStore(conn *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.ComponentLogger("runs")
	}
	return &Store{db: conn, logger: log}
}

const selectColumns = `id, fingerprint, n_rows, n_cols, target_dims, perplexity, theta,
	num_threads, max_iter, backend, source, status, error, cost, iterations,
	duration_ns, created_at`

// Save stores a record, assigning ID and CreatedAt when unset.
func (s *Store) Save(ctx context.Context, r *Record) error {
	if r == nil {
		return errors.New("record is nil")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO runs (
			id, fingerprint, n_rows, n_cols, target_dims, perplexity, theta,
			num_threads, max_iter, backend, source, status, error, cost, iterations,
			duration_ns, embedding, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Fingerprint,
		r.Rows,
		r.Cols,
		r.Params.TargetDims,
		r.Params.Perplexity,
		r.Params.Theta,
		r.Params.NumThreads,
		r.Params.MaxIter,
		r.Backend,
		r.Source,
		string(r.Status),
		r.Error,
		r.Cost,
		r.Iterations,
		int64(r.Duration),
		encodeEmbedding(r.Embedding),
		r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return db.MarkClosed(errors.Wrapf(err, "failed to save run %s", r.ID))
	}

	s.logger.Debugw("Saved run",
		logger.FieldRunID, r.ID,
		"status", r.Status,
		logger.FieldRows, r.Rows)
	return nil
}

// Get returns a run including its embedding.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + selectColumns + `, embedding FROM runs WHERE id = ?`

	var blob []byte
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, id), &blob)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("run %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get run %s", id)
	}

	r.Embedding, err = decodeEmbedding(blob)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", id)
	}
	return r, nil
}

// List returns the most recent runs, newest first, without embeddings.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT ` + selectColumns + ` FROM runs ORDER BY created_at DESC, id LIMIT ?`
	return s.query(ctx, query, limit)
}

// ListByFingerprint returns every run over the same input, newest first.
func (s *Store) ListByFingerprint(ctx context.Context, fingerprint string) ([]*Record, error) {
	query := `SELECT ` + selectColumns + ` FROM runs WHERE fingerprint = ? ORDER BY created_at DESC, id`
	return s.query(ctx, query, fingerprint)
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to delete run %s", id)
	}
	if n == 0 {
		return errors.NewNotFoundError("run %s", id)
	}
	s.logger.Debugw("Deleted run", logger.FieldRunID, id)
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan run at row %d", len(out)+1)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate runs")
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads selectColumns, plus the embedding blob when blob is non-nil.
func scanRecord(row scanner, blob *[]byte) (*Record, error) {
	var (
		r          Record
		status     string
		cost       sql.NullFloat64
		iterations sql.NullInt64
		durationNS int64
		createdAt  string
	)
	dest := []interface{}{
		&r.ID,
		&r.Fingerprint,
		&r.Rows,
		&r.Cols,
		&r.Params.TargetDims,
		&r.Params.Perplexity,
		&r.Params.Theta,
		&r.Params.NumThreads,
		&r.Params.MaxIter,
		&r.Backend,
		&r.Source,
		&status,
		&r.Error,
		&cost,
		&iterations,
		&durationNS,
		&createdAt,
	}
	if blob != nil {
		dest = append(dest, blob)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	r.Status = Status(status)
	if cost.Valid {
		c := cost.Float64
		r.Cost = &c
	}
	if iterations.Valid {
		it := int(iterations.Int64)
		r.Iterations = &it
	}
	r.Duration = time.Duration(durationNS)
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &r, nil
}
