package httpapi

import (
	"net/http"
	"strings"
	"time"

	costhook "github.com/goliatone/go-costhook"
	"github.com/goliatone/go-costhook/auth"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	PathPrefix = "/api/v1"

	defaultMaxBodyBytes int64 = 1 << 20
)

type Option func(*Server)

func WithLogger(logger glog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxBodyBytes = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server exposes the cost service over JSON. Every route except the health
// probe requires a bearer token accepted by the verifier.
type Server struct {
	commands     costhook.Commands
	queries      costhook.Queries
	verifier     *auth.Verifier
	logger       glog.Logger
	maxBodyBytes int64
	now          func() time.Time
	mux          *http.ServeMux
}

func NewServer(facade *costhook.Facade, verifier *auth.Verifier, opts ...Option) (*Server, error) {
	if facade == nil {
		return nil, missingDependency("facade")
	}
	if verifier == nil {
		return nil, missingDependency("token verifier")
	}
	server := &Server{
		commands:     facade.Commands(),
		queries:      facade.Queries(),
		verifier:     verifier,
		logger:       glog.Nop(),
		maxBodyBytes: defaultMaxBodyBytes,
		now:          time.Now,
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}
	server.routes()
	return server, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET "+PathPrefix+"/health", s.handleHealth)
	s.mux.Handle("GET "+PathPrefix+"/health/protected", s.authenticated(s.handleProtectedHealth))

	s.mux.Handle("GET "+PathPrefix+"/users/me", s.authenticated(s.handleGetProfile))
	s.mux.Handle("PATCH "+PathPrefix+"/users/me", s.authenticated(s.handleUpdateProfile))

	s.mux.Handle("GET "+PathPrefix+"/providers", s.authenticated(s.handleListProviders))
	s.mux.Handle("POST "+PathPrefix+"/providers", s.authenticated(s.handleCreateProvider))
	s.mux.Handle("GET "+PathPrefix+"/providers/{id}", s.authenticated(s.handleGetProvider))
	s.mux.Handle("PATCH "+PathPrefix+"/providers/{id}", s.authenticated(s.handleUpdateProvider))
	s.mux.Handle("DELETE "+PathPrefix+"/providers/{id}", s.authenticated(s.handleDeleteProvider))
	s.mux.Handle("POST "+PathPrefix+"/providers/{id}/sync", s.authenticated(s.handleRequestSync))
	s.mux.Handle("GET "+PathPrefix+"/providers/{id}/syncs", s.authenticated(s.handleListSyncs))

	s.mux.Handle("GET "+PathPrefix+"/costs", s.authenticated(s.handleListCosts))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startedAt := s.now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(recorder, r)
	s.logger.Info("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", recorder.status,
		"duration_ms", s.now().Sub(startedAt).Milliseconds(),
	)
}

func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, unauthorized("Not authenticated"))
			return
		}
		principal, err := s.verifier.Verify(token)
		if err != nil {
			s.logger.Warn("rejected bearer token", "path", r.URL.Path, "error", err)
			writeError(w, auth.ToServiceError(err))
			return
		}
		next(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
