// Package runs keeps a history of embedding calls in SQLite.
package runs

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"time"

	"github.com/mr-tron/base58"
	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

// Status is the outcome of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is one embedding call.
type Record struct {
	ID          string        `json:"id"`
	Fingerprint string        `json:"fingerprint"`
	Rows        int           `json:"n_rows"`
	Cols        int           `json:"n_cols"`
	Params      tsne.Params   `json:"params"`
	Backend     string        `json:"backend"`
	Source      string        `json:"source,omitempty"` // cli, http, ws, grpc, mcp
	Status      Status        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Cost        *float64      `json:"cost,omitempty"`
	Iterations  *int          `json:"iterations,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Embedding   *mat.Dense    `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewRecord describes a finished call. x is the input the caller passed and
// may be nil when conversion failed before a matrix existed.
func NewRecord(x mat.Matrix, p tsne.Params, backend, source string, res *tsne.Result, err error, d time.Duration) *Record {
	r := &Record{
		Params:   p,
		Backend:  backend,
		Source:   source,
		Duration: d,
		Status:   StatusSucceeded,
	}
	if x != nil {
		r.Rows, r.Cols = x.Dims()
		r.Fingerprint = Fingerprint(x)
	}
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return r
	}
	if res != nil {
		r.Embedding = res.Embedding
		if c, ok := res.Cost(); ok {
			r.Cost = &c
		}
		if it, ok := res.Iterations(); ok {
			r.Iterations = &it
		}
	}
	return r
}

// Fingerprint identifies a matrix by content: base58 of the SHA-256 over its
// shape and the IEEE-754 bits of every element in row-major order.
func Fingerprint(x mat.Matrix) string {
	rows, cols := x.Dims()
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(rows))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(cols))
	h.Write(buf[:])
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x.At(i, j)))
			h.Write(buf[:])
		}
	}
	return base58.Encode(h.Sum(nil))
}

// encodeEmbedding packs rows, cols (uint32) and the values (float64), all
// little-endian.
func encodeEmbedding(m *mat.Dense) []byte {
	if m == nil || m.IsEmpty() {
		return nil
	}
	rows, cols := m.Dims()
	out := make([]byte, 8+8*rows*cols)
	binary.LittleEndian.PutUint32(out[0:], uint32(rows))
	binary.LittleEndian.PutUint32(out[4:], uint32(cols))
	off := 8
	for i := 0; i < rows; i++ {
		for _, v := range m.RawRowView(i) {
			binary.LittleEndian.PutUint64(out[off:], math.Float64bits(v))
			off += 8
		}
	}
	return out
}

func decodeEmbedding(b []byte) (*mat.Dense, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b) < 8 {
		return nil, errors.Newf("embedding blob too short (%d bytes)", len(b))
	}
	rows := int(binary.LittleEndian.Uint32(b[0:]))
	cols := int(binary.LittleEndian.Uint32(b[4:]))
	if rows == 0 || cols == 0 || len(b) != 8+8*rows*cols {
		return nil, errors.Newf("embedding blob of %d bytes does not hold %dx%d values", len(b), rows, cols)
	}
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8+8*i:]))
	}
	return mat.NewDense(rows, cols, data), nil
}
