package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/facultyhub/internal/directory"
	"github.com/ajitpratap0/facultyhub/internal/news"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

const (
	defaultNewsLimit = 20
	maxNewsLimit     = 100
	maxBodyBytes     = 1 << 20
)

// NewsFetcher runs one ingestion pass on demand.
type NewsFetcher interface {
	FetchAndStore(ctx context.Context) news.Result
}

// Server is an HTTP API server that exposes the faculty directory.
type Server struct {
	engine    *directory.Engine
	fetcher   NewsFetcher
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies.
func NewServer(engine *directory.Engine, fetcher NewsFetcher, logger *slog.Logger, authToken string) *Server {
	return &Server{
		engine:    engine,
		fetcher:   fetcher,
		logger:    logger.With("component", "api"),
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check and reads: no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/directory", s.handleDirectory)
	mux.HandleFunc("GET /api/mock-data", s.handleDirectory)
	mux.HandleFunc("GET /mock-data", s.handleDirectory)
	mux.HandleFunc("GET /api/news", s.handleListNews)
	mux.HandleFunc("GET /api/companies", s.handleListCompanies)
	mux.Handle("GET /debug/vars", expvar.Handler())

	// Mutations and administrative triggers: wrapped with auth middleware.
	mux.HandleFunc("POST /api/datas/update", s.auth(s.handleUpsertProfessor))
	mux.HandleFunc("POST /datas/update", s.auth(s.handleUpsertProfessor))
	mux.HandleFunc("DELETE /api/professors/{id}", s.auth(s.handleDeleteProfessor))
	mux.HandleFunc("DELETE /professors/{id}", s.auth(s.handleDeleteProfessor))
	mux.HandleFunc("DELETE /api/departments/{id}", s.auth(s.handleDeleteDepartment))
	mux.HandleFunc("DELETE /departments/{id}", s.auth(s.handleDeleteDepartment))
	mux.HandleFunc("POST /internal/fetch-news", s.auth(s.handleFetchNews))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	dir, err := s.engine.Directory(r.Context())
	if err != nil {
		s.logger.Error("failed to load directory", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, dir)
}

func (s *Server) handleUpsertProfessor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := directory.DecodeProfessorPayload(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prof, err := s.engine.UpsertProfessor(r.Context(), payload)
	if err != nil {
		s.writeEngineError(w, "failed to update professor", err)
		return
	}
	s.writeJSON(w, http.StatusOK, prof)
}

// professorDeleteResponse is returned by DELETE /api/professors/{id}.
type professorDeleteResponse struct {
	OK bool `json:"ok"`
	*directory.ProfessorDeletion
}

func (s *Server) handleDeleteProfessor(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	res, err := s.engine.DeleteProfessor(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "professor not found")
			return
		}
		s.writeEngineError(w, "failed to delete professor", err)
		return
	}
	s.writeJSON(w, http.StatusOK, professorDeleteResponse{OK: true, ProfessorDeletion: res})
}

// departmentDeleteResponse is returned by DELETE /api/departments/{id}.
type departmentDeleteResponse struct {
	OK bool `json:"ok"`
	*directory.DepartmentDeletion
}

// handleDeleteDepartment irreversibly removes a department, its branches and their
// professors. The path value may be a department ID or name.
func (s *Server) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	idOrName := strings.TrimSpace(r.PathValue("id"))
	if idOrName == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	res, err := s.engine.DeleteDepartment(r.Context(), idOrName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "department not found")
			return
		}
		s.writeEngineError(w, "failed to delete department", err)
		return
	}
	s.writeJSON(w, http.StatusOK, departmentDeleteResponse{OK: true, DepartmentDeletion: res})
}

func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListNews(r.Context(), newsLimit(r.URL.Query().Get("limit")))
	if err != nil {
		s.logger.Error("failed to list news", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.engine.ListCompanies(r.Context())
	if err != nil {
		s.logger.Error("failed to list companies", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, companies)
}

func (s *Server) handleFetchNews(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.fetcher.FetchAndStore(r.Context()))
}

// --- helpers ---

// newsLimit parses the limit query parameter. Missing, malformed or non-positive
// values use the default; larger values are capped.
func newsLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultNewsLimit
	}
	return min(n, maxNewsLimit)
}

// writeEngineError maps engine errors onto HTTP status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, directory.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		s.writeError(w, http.StatusConflict, "conflict")
	default:
		s.logger.Error(msg, "error", err)
		s.writeError(w, http.StatusInternalServerError, msg)
	}
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
