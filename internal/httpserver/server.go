package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/database"
	"github.com/radiusdt/adinsights/internal/filters"
	"github.com/radiusdt/adinsights/internal/insights"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/middleware"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/radiusdt/adinsights/internal/warehouse"
)

// Fetcher answers metric queries. *insights.Service implements it.
type Fetcher interface {
	Fetch(ctx context.Context, raw filters.RawFilters) ([]models.MetricRecord, error)
}

// HealthCheck reports whether a backing component is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB       *database.PostgresDB
	Redis    *database.RedisDB
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// Insights overrides the service built on DB.
	Insights Fetcher
	// Checks are run by /health in addition to the DB and Redis pings.
	Checks map[string]HealthCheck
}

// Server wraps HTTP handlers and the insights service.
type Server struct {
	insights Fetcher
	checks   map[string]HealthCheck
	logger   *zap.Logger
	config   *config.Config
	metrics  *metrics.Metrics
}

type fetchResponse struct {
	Data []models.MetricRecord `json:"data"`
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := deps.Insights
	if svc == nil && deps.DB != nil {
		svc = insights.NewService(insights.PoolAcquirer{Pool: deps.DB.Pool}, logger, deps.Metrics)
	}

	checks := make(map[string]HealthCheck, len(deps.Checks)+2)
	for name, check := range deps.Checks {
		checks[name] = check
	}
	if deps.DB != nil {
		checks["postgres"] = deps.DB.Health
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis.Health
	}

	s := &Server{
		insights: svc,
		checks:   checks,
		logger:   logger.With(zap.String("component", "http")),
		config:   deps.Config,
		metrics:  deps.Metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(logger).Handler)
	r.Use(s.instrument)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.errorResponse(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.errorResponse(w, "Not Found", http.StatusNotFound)
	})

	// Health and metrics stay outside the rate limit.
	r.Get("/health", s.handleHealth)
	if deps.Config.Metrics.Enabled {
		if deps.Gatherer != nil {
			r.Handle(deps.Config.Metrics.Path, metrics.HandlerFor(deps.Gatherer))
		} else {
			r.Handle(deps.Config.Metrics.Path, metrics.Handler())
		}
	}

	limiter := middleware.NewRateLimitMiddleware(deps.Config.RateLimit, logger, deps.Metrics)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)

		r.Get("/", s.handleRoot)
		r.Get("/fetch-data", s.handleFetchData)
		r.Get("/fetch-data/", s.handleFetchData)
	})

	return r
}

// ---- Status ----

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "adinsights API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"failed": failed,
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- Metrics query ----

func (s *Server) handleFetchData(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		s.errorResponse(w, "Database error", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	if s.config.Server.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Server.QueryTimeout)
		defer cancel()
	}

	records, err := s.insights.Fetch(ctx, rawFilters(r))
	if err != nil {
		s.fetchError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, fetchResponse{Data: records})
}

// rawFilters reads the eight optional filter parameters. Unknown parameters are
// ignored. Values are passed on undecoded beyond standard query unescaping;
// list splitting happens in filters.
func rawFilters(r *http.Request) filters.RawFilters {
	q := r.URL.Query()
	raw := filters.RawFilters{
		StartDate: q.Get(filters.FieldStartDate),
		EndDate:   q.Get(filters.FieldEndDate),
		Values:    make(map[models.Dimension]string, len(models.Dimensions)),
	}
	for key, values := range q {
		d, ok := models.ParseDimension(key)
		if !ok || len(values) == 0 || values[0] == "" {
			continue
		}
		raw.Values[d] = values[0]
	}
	return raw
}

func (s *Server) fetchError(w http.ResponseWriter, r *http.Request, err error) {
	if filters.IsClientError(err) {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var execErr *warehouse.QueryExecutionError
	if !errors.As(err, &execErr) {
		s.logger.Error("unexpected fetch failure",
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.Error(err),
		)
	}
	s.errorResponse(w, "Database error", http.StatusInternalServerError)
}

// ---- Helper Methods ----

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.metrics.RecordHTTPRequest(middleware.RoutePattern(r), sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	s.jsonResponse(w, code, map[string]string{"detail": message})
}
