package dataset

import (
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

// Job describes an embedding run in a TOML file:
//
//	input = "data/iris.csv"
//	header = true
//	output = "iris.json"
//
//	[params]
//	target_dims = 2
//	perplexity = 30.0
//	theta = 0.5
//	num_threads = 4
//	max_iter = 1000
//
// Params left out of the file keep the configured defaults.
type Job struct {
	Input        string `toml:"input"`
	Format       string `toml:"format"`
	Header       bool   `toml:"header"`
	Output       string `toml:"output"`
	OutputFormat string `toml:"output_format"`

	Params tsne.Params `toml:"params"`

	// set records which params the file provided
	set map[string]bool
}

// LoadJob reads a job file. A relative input path is resolved against the
// job file's directory.
func LoadJob(path string) (*Job, error) {
	var job Job
	meta, err := toml.DecodeFile(path, &job)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse job %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("job %s has unknown key %q", path, undecoded[0].String()),
			"see `rtsne run --help` for the job file layout")
	}
	if job.Input == "" {
		return nil, errors.NewInvalidRequestError("job %s has no input", path)
	}

	job.set = make(map[string]bool)
	for _, key := range []string{tsne.ArgTargetDims, tsne.ArgPerplexity, tsne.ArgTheta, tsne.ArgNumThreads, tsne.ArgMaxIter} {
		job.set[key] = meta.IsDefined("params", key)
	}

	if isLocal(job.Input) && !filepath.IsAbs(job.Input) {
		job.Input = filepath.Join(filepath.Dir(path), job.Input)
	}
	if job.Output != "" && !filepath.IsAbs(job.Output) {
		job.Output = filepath.Join(filepath.Dir(path), job.Output)
	}
	return &job, nil
}

// ApplyTo overlays the params the job file set on top of defaults.
func (j *Job) ApplyTo(defaults tsne.Params) tsne.Params {
	p := defaults
	if j.set[tsne.ArgTargetDims] {
		p.TargetDims = j.Params.TargetDims
	}
	if j.set[tsne.ArgPerplexity] {
		p.Perplexity = j.Params.Perplexity
	}
	if j.set[tsne.ArgTheta] {
		p.Theta = j.Params.Theta
	}
	if j.set[tsne.ArgNumThreads] {
		p.NumThreads = j.Params.NumThreads
	}
	if j.set[tsne.ArgMaxIter] {
		p.MaxIter = j.Params.MaxIter
	}
	return p
}

func isLocal(src string) bool {
	return src != "-" && !containsScheme(src)
}

func containsScheme(src string) bool {
	for i, c := range src {
		switch {
		case c == ':':
			return i > 1
		case c == '/' || c == '\\':
			return false
		}
	}
	return false
}
