// Package dataset reads input matrices and job files and writes embedding
// results for the command line.
package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/tsne"
)

// Input formats.
const (
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatJSON = "json"
)

// Options control how Load reads a matrix.
type Options struct {
	// Format is csv, tsv or json. Empty means detect from the extension,
	// falling back to csv.
	Format string
	// Header skips the first row of csv and tsv input.
	Header bool
	Logger *zap.SugaredLogger
}

// Load reads a matrix from a local path or a remote source such as an
// https URL, fetching remote sources to a temporary directory first.
func Load(ctx context.Context, src string, opts Options) (*mat.Dense, error) {
	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("dataset")
	}

	path, cleanup, err := Fetch(ctx, src, log)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", src)
	}
	defer f.Close()

	format := opts.Format
	if format == "" {
		format = DetectFormat(src)
	}
	m, err := Read(f, format, opts.Header)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", src)
	}

	rows, cols := m.Dims()
	log.Debugw("Loaded matrix", "source", src, logger.FieldRows, rows, logger.FieldCols, cols)
	return m, nil
}

// DetectFormat guesses the format from a file name or URL.
func DetectFormat(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tsv", ".tab":
		return FormatTSV
	case ".json":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// Read parses a matrix in the given format.
func Read(r io.Reader, format string, header bool) (*mat.Dense, error) {
	switch format {
	case FormatCSV:
		return readDelimited(r, ',', header)
	case FormatTSV:
		return readDelimited(r, '\t', header)
	case FormatJSON:
		return readJSON(r)
	default:
		return nil, errors.WithHintf(
			errors.NewInvalidRequestError("unknown input format %q", format),
			"use %s, %s or %s", FormatCSV, FormatTSV, FormatJSON)
	}
}

func readDelimited(r io.Reader, comma rune, header bool) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	// Ragged rows are reported below as argument errors with row numbers.
	cr.FieldsPerRecord = -1

	var data []float64
	var rows, cols int
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, tsne.NewArgumentTypeError(tsne.ArgMatrix, "malformed delimited input: %v", parseErr)
			}
			return nil, errors.Wrap(err, "failed to read delimited input")
		}
		line++
		if header && line == 1 {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if rows == 0 {
			cols = len(record)
		} else if len(record) != cols {
			return nil, tsne.NewArgumentTypeError(tsne.ArgMatrix, "row %d has %d columns, expected %d", rows, len(record), cols)
		}
		for j, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, tsne.NewArgumentTypeError(tsne.ArgMatrix, "element (%d,%d) %q is not a number", rows, j, cell)
			}
			data = append(data, v)
		}
		rows++
	}

	if rows == 0 {
		return nil, tsne.NewArgumentTypeError(tsne.ArgMatrix, "matrix has no rows")
	}
	// ToMatrix rejects non-finite cells the same way call arguments are checked.
	return tsne.ToMatrix(mat.NewDense(rows, cols, data))
}

func readJSON(r io.Reader) (*mat.Dense, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if err == io.EOF {
			return nil, tsne.NewArgumentTypeError(tsne.ArgMatrix, "matrix has no rows")
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, tsne.NewArgumentTypeError(tsne.ArgMatrix, "malformed JSON input: %v", err)
		}
		return nil, errors.Wrap(err, "failed to read JSON input")
	}
	// An object is accepted when it carries the matrix under its argument name.
	if obj, ok := v.(map[string]any); ok {
		if m, ok := obj[tsne.ArgMatrix]; ok {
			v = m
		}
	}
	return tsne.ToMatrix(v)
}
