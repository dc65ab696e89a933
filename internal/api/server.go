// Package api exposes recommendations, cache refresh, dataset integrity and
// run history over HTTP JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/referral-cli/internal/ingest"
	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/resilience"
	"github.com/sells-group/referral-cli/internal/scorer"
	"github.com/sells-group/referral-cli/internal/store"
)

// Recommender answers recommendation queries.
type Recommender interface {
	Recommend(ctx context.Context, q scorer.Query) (*scorer.Recommendation, error)
}

// Datasets is the part of the ingestion manager the API drives.
type Datasets interface {
	Refresh()
	ValidateDataIntegrity(ctx context.Context, src ingest.Source) (*ingest.IntegrityReport, error)
	CacheStats() ingest.CacheStats
}

// RunLister lists preparation runs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.PreparationRun, error)
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// RecommendRPS limits POST /recommend. Zero disables the limit.
	RecommendRPS float64
}

type server struct {
	rec  Recommender
	data Datasets
	runs RunLister
	log  *zap.Logger
}

// NewRouter builds the HTTP handler. runs may be nil, in which case
// GET /runs answers 503.
func NewRouter(opts Options, rec Recommender, data Datasets, runs RunLister) http.Handler {
	s := &server{
		rec:  rec,
		data: data,
		runs: runs,
		log:  zap.L().With(zap.String("component", "api")),
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.With(rateLimit(opts.RecommendRPS)).Post("/recommend", s.recommend)
	r.Post("/refresh", s.refresh)
	r.Get("/integrity/{source}", s.integrity)
	r.Get("/runs", s.listRuns)
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// rateLimit rejects requests above rps with 429. A non-positive rps
// disables the limit.
func rateLimit(rps float64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		burst := int(math.Ceil(rps))
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  s.data.CacheStats(),
	})
}

func (s *server) refresh(w http.ResponseWriter, _ *http.Request) {
	s.data.Refresh()
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *server) integrity(w http.ResponseWriter, r *http.Request) {
	src, err := ingest.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.data.ValidateDataIntegrity(r.Context(), src)
	if err != nil {
		s.fail(w, "integrity", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		s.fail(w, "runs", err)
		return
	}
	if runs == nil {
		runs = []model.PreparationRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// fail maps a backend error onto a status code.
func (s *server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ingest.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, resilience.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "run history is unavailable")
		return
	}
	s.log.Error("api: request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
