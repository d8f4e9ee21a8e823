// Package web exposes the review flow and topic sources over HTTP/JSON.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/conorfennell/retention/internal/domain"
	"github.com/conorfennell/retention/internal/review"
	"github.com/conorfennell/retention/internal/storage"
	"github.com/conorfennell/retention/internal/sync"
)

const maxLimit = 1000

// Catalog is the topic and source storage the server reads directly.
type Catalog interface {
	FindTopicByHash(ctx context.Context, hash string) (*domain.Topic, error)
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	DeleteSource(ctx context.Context, sourceID int64) (bool, error)
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	reviews  *review.Service
	catalog  Catalog
	syncer   *sync.Syncer
	logger   *slog.Logger
	dueLimit int
	router   *http.ServeMux
}

// NewServer creates and configures a new server. dueLimit is the page size
// used when a request does not pass ?limit.
func NewServer(reviews *review.Service, catalog Catalog, syncer *sync.Syncer, logger *slog.Logger, dueLimit int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		reviews:  reviews,
		catalog:  catalog,
		syncer:   syncer,
		logger:   logger,
		dueLimit: dueLimit,
		router:   http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(rec, r)
	s.logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
	)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	s.router.HandleFunc("POST /learners/{learner}/topics/{topic}/reviews", s.handlePostReview())
	s.router.HandleFunc("GET /learners/{learner}/topics/{topic}", s.handleGetCard())
	s.router.HandleFunc("GET /learners/{learner}/topics/{topic}/history", s.handleGetHistory())
	s.router.HandleFunc("GET /learners/{learner}/due", s.handleGetDue())
	s.router.HandleFunc("GET /learners/{learner}/queue", s.handleGetQueue())

	s.router.HandleFunc("GET /topics/{topic}", s.handleGetTopic())

	s.router.HandleFunc("GET /sources", s.handleGetSources())
	s.router.HandleFunc("POST /sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.catalog.Ping(r.Context()); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type reviewRequest struct {
	Quality *float64 `json:"quality"`
}

// handlePostReview schedules a review and returns the new card.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Quality == nil {
			writeError(w, http.StatusBadRequest, "quality is required")
			return
		}

		out, err := s.reviews.Submit(r.Context(), review.Submission{
			LearnerID: r.PathValue("learner"),
			TopicID:   r.PathValue("topic"),
			Quality:   *req.Quality,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetCard returns the learner's stored card for a topic.
func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.reviews.Card(r.Context(), r.PathValue("learner"), r.PathValue("topic"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if card == nil {
			writeError(w, http.StatusNotFound, "no card for this learner and topic")
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleGetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := s.limit(w, r)
		if !ok {
			return
		}
		logs, err := s.reviews.History(r.Context(), r.PathValue("learner"), r.PathValue("topic"), limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reviews": nonNil(logs)})
	}
}

// handleGetDue lists cards whose next review is due now.
func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := s.limit(w, r)
		if !ok {
			return
		}
		due, err := s.reviews.Due(r.Context(), r.PathValue("learner"), limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"due": nonNil(due)})
	}
}

func (s *Server) handleGetQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := s.limit(w, r)
		if !ok {
			return
		}
		q, err := s.reviews.Queue(r.Context(), r.PathValue("learner"), limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		q.Due, q.Unseen = nonNil(q.Due), nonNil(q.Unseen)
		writeJSON(w, http.StatusOK, q)
	}
}

func (s *Server) handleGetTopic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic, err := s.catalog.FindTopicByHash(r.Context(), r.PathValue("topic"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if topic == nil {
			writeError(w, http.StatusNotFound, "topic not found")
			return
		}
		writeJSON(w, http.StatusOK, topic)
	}
}

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.catalog.GetAllSources(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sources": nonNil(sources)})
	}
}

type sourceRequest struct {
	Path string `json:"path"`
}

// handlePostSource registers a local directory or git URL.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil || req.Path == "" {
			writeError(w, http.StatusBadRequest, "path cannot be empty")
			return
		}
		src, err := s.syncer.AddSource(r.Context(), req.Path)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, src)
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source ID")
			return
		}
		deleted, err := s.catalog.DeleteSource(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, "source not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync runs a sync in the foreground and returns its reports.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.syncer.Run(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": nonNil(reports)})
	}
}

// limit reads ?limit, falling back to the configured due limit.
func (s *Server) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.dueLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxLimit))
		return 0, false
	}
	return n, true
}

// fail maps service errors to HTTP statuses. Unexpected errors are logged
// and reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, review.ErrInvalidSubmission):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, review.ErrUnknownTopic):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "card is being reviewed concurrently, try again")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
