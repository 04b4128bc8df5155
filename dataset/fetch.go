package dataset

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/rtsne/errors"
)

// Fetch resolves src to a readable local file. Local paths (including ~ and
// file:// forms) are returned as is with a no-op cleanup. Anything else
// go-getter recognises is downloaded into a temp directory that cleanup
// removes.
func Fetch(ctx context.Context, src string, log *zap.SugaredLogger) (string, func(), error) {
	noop := func() {}
	if src == "" {
		return "", noop, errors.NewInvalidRequestError("no input source given")
	}
	if src == "-" {
		return "/dev/stdin", noop, nil
	}

	if strings.HasPrefix(src, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", noop, errors.Wrap(err, "failed to get home directory")
		}
		src = filepath.Join(home, src[2:])
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	detected, err := getter.Detect(src, pwd, getter.Detectors)
	if err != nil {
		return "", noop, errors.Wrapf(err, "invalid input source %q", src)
	}
	u, err := url.Parse(detected)
	if err != nil {
		return "", noop, errors.Wrapf(err, "failed to parse input source %q", src)
	}
	if u.Scheme == "" || u.Scheme == "file" {
		local := src
		if u.Scheme == "file" {
			local = u.Path
		}
		if _, err := os.Stat(local); err != nil {
			return "", noop, errors.Wrapf(err, "input %s", src)
		}
		return local, noop, nil
	}

	tempDir, err := os.MkdirTemp("", "rtsne-input-*")
	if err != nil {
		return "", noop, errors.Wrap(err, "failed to create temp directory")
	}
	cleanup := func() {
		log.Debugw("Removing fetched input", "path", tempDir)
		os.RemoveAll(tempDir)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "input"
	}
	dst := filepath.Join(tempDir, name)

	log.Infow("Fetching input", "source", src, "detected", detected)
	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}
	if err := client.Get(); err != nil {
		cleanup()
		return "", noop, errors.Wrapf(err, "failed to fetch %s", src)
	}
	return dst, cleanup, nil
}
