package dataset

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

// Output formats. CSV carries only the embedding, one row per point.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputCSV  = "csv"
)

// Write encodes res to w.
func Write(w io.Writer, res *tsne.Result, format string) error {
	if res == nil {
		return errors.New("no result to write")
	}
	switch format {
	case OutputJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.AsMap())
	case OutputYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res.AsMap()); err != nil {
			return errors.Wrap(err, "failed to encode YAML")
		}
		return enc.Close()
	case OutputCSV:
		return writeCSV(w, res)
	default:
		return errors.WithHintf(
			errors.NewInvalidRequestError("unknown output format %q", format),
			"use %s, %s or %s", OutputJSON, OutputYAML, OutputCSV)
	}
}

// WriteFile writes res to path, choosing the format from the extension when
// format is empty.
func WriteFile(path string, res *tsne.Result, format string) error {
	if format == "" {
		format = OutputFormatFor(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := Write(f, res, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// OutputFormatFor guesses the output format from a file name.
func OutputFormatFor(name string) string {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return OutputYAML
	case ".csv":
		return OutputCSV
	default:
		return OutputJSON
	}
}

func writeCSV(w io.Writer, res *tsne.Result) error {
	cw := csv.NewWriter(w)
	_, cols := res.Dims()
	header := make([]string, cols)
	for j := range header {
		header[j] = "Y" + strconv.Itoa(j+1)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, cols)
	for _, row := range res.Rows() {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
