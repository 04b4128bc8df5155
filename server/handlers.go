package server

import (
	"net/http"
	"strconv"

	"github.com/teranos/rtsne/bhtsne"
	"github.com/teranos/rtsne/dataset"
	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/internal/service"
	"github.com/teranos/rtsne/internal/version"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/runs"
	"github.com/teranos/rtsne/tsne"
)

// EmbedResponse is the body of a successful POST /api/embed.
type EmbedResponse struct {
	RunID      string       `json:"run_id,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	Result     *tsne.Result `json:"result"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Backend       string `json:"backend"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	NativeVersion string `json:"native_version,omitempty"`
	RunHistory    bool   `json:"run_history"`
}

// HandleEmbed runs one embedding. The body carries the six arguments by name;
// scalars left out take the configured defaults.
func (s *Server) HandleEmbed(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var args map[string]any
	if err := readJSON(w, r, &args); err != nil {
		return
	}
	if err := s.allow(); err != nil {
		writeErr(w, err)
		return
	}

	out, err := s.svc.Embed(r.Context(), args, service.SourceHTTP, nil)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, EmbedResponse{
		RunID:      out.RunID,
		DurationMS: out.Duration.Milliseconds(),
		Result:     out.Result,
	})
}

// Body keys of POST /api/embed/url that describe the input rather than the call.
const (
	urlKeyInput  = "input"
	urlKeyFormat = "format"
	urlKeyHeader = "header"
)

// HandleEmbedURL embeds a matrix downloaded from an http(s) URL. The body
// holds "input" (the URL), optional "format" and "header", and the scalar
// run_embedding arguments.
func (s *Server) HandleEmbedURL(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var args map[string]any
	if err := readJSON(w, r, &args); err != nil {
		return
	}
	input, _ := args[urlKeyInput].(string)
	if input == "" {
		writeErr(w, errors.WithHint(errors.NewInvalidRequestError("missing input URL"),
			`send {"input": "https://..."}`))
		return
	}
	opts := dataset.Options{Logger: s.logger}
	if v, ok := args[urlKeyFormat].(string); ok {
		opts.Format = v
	}
	if v, ok := args[urlKeyHeader].(bool); ok {
		opts.Header = v
	}
	if err := s.allow(); err != nil {
		writeErr(w, err)
		return
	}

	m, err := dataset.LoadURL(r.Context(), s.fetcher, input, opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	delete(args, urlKeyInput)
	delete(args, urlKeyFormat)
	delete(args, urlKeyHeader)
	args[tsne.ArgMatrix] = m

	out, err := s.svc.Embed(r.Context(), args, service.SourceHTTP, nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EmbedResponse{
		RunID:      out.RunID,
		DurationMS: out.Duration.Milliseconds(),
		Result:     out.Result,
	})
}

// HandleRuns lists run history, newest first.
func (s *Server) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	store := s.svc.Runs()
	if store == nil {
		writeError(w, http.StatusNotFound, "Run history is disabled")
		return
	}

	var (
		list []*runs.Record
		err  error
	)
	if fp := r.URL.Query().Get("fingerprint"); fp != "" {
		list, err = store.ListByFingerprint(r.Context(), fp)
	} else {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
		}
		list, err = store.List(r.Context(), limit)
	}
	if err != nil {
		s.logger.Errorw("Failed to list runs", logger.FieldError, err)
		writeErr(w, err)
		return
	}
	if list == nil {
		list = []*runs.Record{}
	}
	writeJSON(w, http.StatusOK, list)
}

// runDetail is a run with its embedding rows.
type runDetail struct {
	*runs.Record
	Y [][]float64 `json:"Y,omitempty"`
}

// HandleRun returns (GET) or deletes (DELETE) a single run.
func (s *Server) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	store := s.svc.Runs()
	if store == nil {
		writeError(w, http.StatusNotFound, "Run history is disabled")
		return
	}
	id := trimID(r.URL.Path, "/api/runs/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing run id")
		return
	}

	if r.Method == http.MethodDelete {
		if err := store.Delete(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		s.logger.Infow("Deleted run", logger.FieldRunID, shortID(id))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rec, err := store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	detail := runDetail{Record: rec}
	if rec.Embedding != nil {
		detail.Y = (&tsne.Result{Embedding: rec.Embedding}).Rows()
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleConfig reports the defaults applied to calls that omit a scalar.
func (s *Server) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Defaults())
}

// HandleHealth reports liveness and build information.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	resp := HealthResponse{
		Status:     "ok",
		Backend:    s.svc.Backend().Name(),
		Version:    info.Version,
		Commit:     info.Short(),
		RunHistory: s.svc.Runs() != nil,
	}
	if bhtsne.Available {
		if v, err := bhtsne.Version(); err == nil {
			resp.NativeVersion = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
