package tsne

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Argument names accepted by ConvertArgs. Aliases match the parameter
// names of the native Rtsne_cpp routine.
const (
	ArgMatrix     = "matrix"
	ArgTargetDims = "target_dims"
	ArgPerplexity = "perplexity"
	ArgTheta      = "theta"
	ArgNumThreads = "num_threads"
	ArgMaxIter    = "max_iter"
)

var argAliases = map[string][]string{
	ArgMatrix:     {"X"},
	ArgTargetDims: {"no_dims", "dims"},
	ArgPerplexity: {"perplexity_in"},
	ArgTheta:      {"theta_in"},
	ArgNumThreads: {"threads"},
	ArgMaxIter:    {"iterations"},
}

// newRequest converts the caller's arguments into native parameter types.
// The matrix is copied; x is only read.
func newRequest(x mat.Matrix, targetDims int, perplexity, theta float64, numThreads, maxIter int) (*Request, error) {
	data, rows, cols, err := flatten(x)
	if err != nil {
		return nil, err
	}
	dims, err := toInt32(ArgTargetDims, targetDims)
	if err != nil {
		return nil, err
	}
	threads, err := toInt32(ArgNumThreads, numThreads)
	if err != nil {
		return nil, err
	}
	iters, err := toInt32(ArgMaxIter, maxIter)
	if err != nil {
		return nil, err
	}
	return &Request{
		X:          data,
		Rows:       rows,
		Cols:       cols,
		TargetDims: dims,
		Perplexity: perplexity,
		Theta:      theta,
		NumThreads: threads,
		MaxIter:    iters,
	}, nil
}

func flatten(x mat.Matrix) ([]float64, int, int, error) {
	if x == nil {
		return nil, 0, 0, argumentError(ArgMatrix, "matrix is nil")
	}
	if d, ok := x.(*mat.Dense); ok && d == nil {
		return nil, 0, 0, argumentError(ArgMatrix, "matrix is nil")
	}
	if e, ok := x.(interface{ IsEmpty() bool }); ok && e.IsEmpty() {
		return nil, 0, 0, argumentError(ArgMatrix, "matrix is empty")
	}

	rows, cols := x.Dims()
	if rows < 1 || cols < 1 {
		return nil, 0, 0, argumentError(ArgMatrix, "matrix must have at least one row and one column, got %dx%d", rows, cols)
	}

	data := make([]float64, rows*cols)
	if raw, ok := x.(mat.RawMatrixer); ok {
		blas := raw.RawMatrix()
		for i := 0; i < rows; i++ {
			copy(data[i*cols:(i+1)*cols], blas.Data[i*blas.Stride:i*blas.Stride+cols])
		}
	} else {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				data[i*cols+j] = x.At(i, j)
			}
		}
	}

	for idx, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, 0, argumentError(ArgMatrix, "element (%d,%d) is not a finite number", idx/cols, idx%cols)
		}
	}
	return data, rows, cols, nil
}

func toInt32(name string, v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, argumentError(name, "%d does not fit in a 32-bit integer", v)
	}
	return int32(v), nil
}

// ConvertArgs converts loosely typed arguments, as decoded from JSON, a
// protobuf Struct or a tool call, into a Call. Scalars missing from args are
// taken from defaults; with nil defaults every argument is required.
// Any value that is not a number of the right kind yields ErrArgumentType.
func ConvertArgs(args map[string]any, defaults *Params) (*Call, error) {
	if args == nil {
		return nil, argumentError(ArgMatrix, "no arguments supplied")
	}

	rawMatrix, ok := lookup(args, ArgMatrix)
	if !ok {
		return nil, argumentError(ArgMatrix, "required argument missing")
	}
	m, err := ToMatrix(rawMatrix)
	if err != nil {
		return nil, err
	}

	call := &Call{Matrix: m}
	if defaults != nil {
		call.Params = *defaults
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{ArgTargetDims, &call.TargetDims},
		{ArgNumThreads, &call.NumThreads},
		{ArgMaxIter, &call.MaxIter},
	}
	for _, p := range ints {
		raw, ok := lookup(args, p.name)
		if !ok {
			if defaults == nil {
				return nil, argumentError(p.name, "required argument missing")
			}
			continue
		}
		v, err := toInt(p.name, raw)
		if err != nil {
			return nil, err
		}
		*p.dst = v
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{ArgPerplexity, &call.Perplexity},
		{ArgTheta, &call.Theta},
	}
	for _, p := range floats {
		raw, ok := lookup(args, p.name)
		if !ok {
			if defaults == nil {
				return nil, argumentError(p.name, "required argument missing")
			}
			continue
		}
		v, err := toFloat(p.name, raw)
		if err != nil {
			return nil, err
		}
		*p.dst = v
	}

	return call, nil
}

func lookup(args map[string]any, name string) (any, bool) {
	if v, ok := args[name]; ok && v != nil {
		return v, true
	}
	for _, alias := range argAliases[name] {
		if v, ok := args[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// ToMatrix converts a loosely typed matrix into a dense copy. Accepted forms
// are mat.Matrix, [][]float64 and nested []any of numbers. Ragged rows,
// non-numeric or non-finite cells and empty input yield ErrArgumentType.
func ToMatrix(v any) (*mat.Dense, error) {
	switch m := v.(type) {
	case mat.Matrix:
		data, rows, cols, err := flatten(m)
		if err != nil {
			return nil, err
		}
		return mat.NewDense(rows, cols, data), nil
	case [][]float64:
		rows := make([]any, len(m))
		for i, r := range m {
			row := make([]any, len(r))
			for j, x := range r {
				row[j] = x
			}
			rows[i] = row
		}
		return matrixFromRows(rows)
	case [][]any:
		rows := make([]any, len(m))
		for i, r := range m {
			rows[i] = r
		}
		return matrixFromRows(rows)
	case []any:
		return matrixFromRows(m)
	default:
		return nil, argumentError(ArgMatrix, "expected a list of numeric rows, got %T", v)
	}
}

func matrixFromRows(rows []any) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, argumentError(ArgMatrix, "matrix has no rows")
	}

	var cols int
	var data []float64
	for i, raw := range rows {
		row, ok := asSlice(raw)
		if !ok {
			return nil, argumentError(ArgMatrix, "row %d is %T, not a list of numbers", i, raw)
		}
		if i == 0 {
			cols = len(row)
			if cols == 0 {
				return nil, argumentError(ArgMatrix, "matrix has no columns")
			}
			data = make([]float64, 0, len(rows)*cols)
		} else if len(row) != cols {
			return nil, argumentError(ArgMatrix, "row %d has %d columns, expected %d", i, len(row), cols)
		}
		for j, cell := range row {
			x, err := toFloat(fmt.Sprintf("%s[%d][%d]", ArgMatrix, i, j), cell)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, argumentError(ArgMatrix, "element (%d,%d) is not a finite number", i, j)
			}
			data = append(data, x)
		}
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func asSlice(v any) ([]any, bool) {
	switch r := v.(type) {
	case []any:
		return r, true
	case []float64:
		out := make([]any, len(r))
		for i, x := range r {
			out[i] = x
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(name string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, argumentError(name, "%q is not a number", n.String())
		}
		return f, nil
	default:
		return 0, argumentError(name, "expected a number, got %T", v)
	}
}

func toInt(name string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, argumentError(name, "%d does not fit in a 32-bit integer", n)
		}
		return int(n), nil
	}

	f, err := toFloat(name, v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, argumentError(name, "expected an integer, got %v", f)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, argumentError(name, "%v does not fit in a 32-bit integer", f)
	}
	return int(f), nil
}
