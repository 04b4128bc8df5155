package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

// maxBodyBytes bounds request bodies; a 10000x100 matrix in JSON fits comfortably.
const maxBodyBytes = 64 << 20

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

// Error kinds reported to clients.
const (
	kindArgumentType = "argument_type"
	kindNative       = "native_computation"
	kindNotFound     = "not_found"
	kindRateLimited  = "rate_limited"
	kindUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErr maps err to a status code and writes it with its kind and hints.
func writeErr(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Kind:  kind,
		Hint:  errors.FlattenHints(err),
	})
}

// classify maps an error to its HTTP status and kind.
func classify(err error) (int, string) {
	switch {
	case tsne.IsArgumentTypeError(err):
		return http.StatusBadRequest, kindArgumentType
	case tsne.IsNativeComputationError(err):
		return http.StatusUnprocessableEntity, kindNative
	case errors.IsNotFoundError(err):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, errors.ErrRateLimited):
		return http.StatusTooManyRequests, kindRateLimited
	case errors.IsServiceUnavailableError(err):
		return http.StatusServiceUnavailable, kindUnavailable
	case errors.IsInvalidRequestError(err):
		return http.StatusBadRequest, ""
	default:
		return http.StatusInternalServerError, ""
	}
}

// readJSON reads and decodes a JSON request body. Numbers are kept as
// json.Number so integer arguments are not silently rounded.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return err
	}
	return nil
}

// requireMethod checks if the request method matches the expected method
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// requireMethods checks if the request method matches one of the expected methods
func requireMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, method := range methods {
		if r.Method == method {
			return true
		}
	}
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// shortID truncates an ID to 8 characters for logging
func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func trimID(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}
