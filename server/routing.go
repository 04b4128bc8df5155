package server

import "net/http"

// setupHTTPRoutes configures all HTTP handlers
func (s *Server) setupHTTPRoutes() {
	s.mux.HandleFunc("/api/embed", s.corsMiddleware(s.HandleEmbed))        // Run an embedding (POST)
	s.mux.HandleFunc("/api/embed/url", s.corsMiddleware(s.HandleEmbedURL)) // Embed a matrix fetched from a URL (POST)
	s.mux.HandleFunc("/api/runs/", s.corsMiddleware(s.HandleRun))          // Single run (GET/DELETE /api/runs/{id})
	s.mux.HandleFunc("/api/runs", s.corsMiddleware(s.HandleRuns))          // Run history (GET ?limit=&fingerprint=)
	s.mux.HandleFunc("/api/config", s.corsMiddleware(s.HandleConfig))      // Current call defaults (GET)
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))
}

// corsMiddleware adds CORS headers for allowed origins and answers preflight
// requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
