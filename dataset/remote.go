package dataset

import (
	"context"
	"io"
	"net/http"

	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/internal/httpclient"
	"github.com/teranos/rtsne/logger"
)

// MaxRemoteBytes caps the body LoadURL will read.
const MaxRemoteBytes = 64 << 20

// LoadURL downloads a matrix over http(s) with client. Unlike Load it never
// touches the local filesystem, so it is safe for URLs supplied by remote
// callers.
func LoadURL(ctx context.Context, client *httpclient.SaferClient, rawURL string, opts Options) (*mat.Dense, error) {
	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("dataset")
	}

	u, err := client.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	log.Infow("Fetching input", "source", u.Redacted())
	resp, err := client.Do(req)
	if err != nil {
		if errors.IsInvalidRequestError(err) {
			return nil, err
		}
		return nil, errors.Mark(errors.Wrapf(err, "failed to fetch %s", u.Redacted()), errors.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewInvalidRequestError("fetching %s returned %s", u.Redacted(), resp.Status)
	}

	format := opts.Format
	if format == "" {
		format = DetectFormat(u.Path)
	}
	m, err := Read(io.LimitReader(resp.Body, MaxRemoteBytes), format, opts.Header)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", u.Redacted())
	}
	return m, nil
}
