package table

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// maxUploadBytes caps upload request bodies; 50MB leaves room for
// high-resolution phone photos.
const maxUploadBytes = int64(50 << 20)

// Server handles HTTP requests for the document table.
type Server struct {
	orchestrator *Orchestrator
	store        *Store
	basicAuth    BasicAuth
	mux          *http.ServeMux
	maxUpload    int64
}

// BasicAuth holds basic authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux.
func NewServer(orchestrator *Orchestrator, store *Store, basicAuth BasicAuth) *Server {
	return NewServerWithMux(orchestrator, store, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing.
func NewServerWithMux(orchestrator *Orchestrator, store *Store, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		orchestrator: orchestrator,
		store:        store,
		basicAuth:    basicAuth,
		mux:          mux,
		maxUpload:    maxUploadBytes,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials.
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="docgrid"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux.
// Routes must be registered from most specific to least specific.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.requireAuth(s.handleStaticCSS))
	s.mux.HandleFunc("GET /static/app.js", s.requireAuth(s.handleStaticJS))

	s.mux.HandleFunc("POST /api/documents", s.requireAuth(s.handleUploadDocuments))
	s.mux.HandleFunc("GET /api/rows/{id}/file", s.requireAuth(s.handleGetRowFile))
	s.mux.HandleFunc("GET /api/rows", s.requireAuth(s.handleListRows))
	s.mux.HandleFunc("GET /api/status", s.requireAuth(s.handleStatus))
	s.mux.HandleFunc("GET /api/columns", s.requireAuth(s.handleColumns))
	s.mux.HandleFunc("POST /api/reset", s.requireAuth(s.handleReset))
	s.mux.HandleFunc("GET /api/export.csv", s.requireAuth(s.handleExportCSV))
	s.mux.HandleFunc("GET /api/export.tsv", s.requireAuth(s.handleExportTSV))
	s.mux.HandleFunc("GET /api/export.xlsx", s.requireAuth(s.handleExportXLSX))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /", s.requireAuth(s.handleIndex))
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
