package insights

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/radiusdt/adinsights/internal/filters"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/radiusdt/adinsights/internal/warehouse"
)

// Conn is a connection borrowed for one request.
type Conn interface {
	warehouse.Querier
	Release()
}

// Acquirer hands out connections. Use PoolAcquirer for a *pgxpool.Pool.
type Acquirer interface {
	Acquire(ctx context.Context) (Conn, error)
}

// PoolAcquirer adapts a pgx pool to Acquirer.
type PoolAcquirer struct {
	Pool *pgxpool.Pool
}

func (p PoolAcquirer) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Service runs the validate-then-execute cycle for metric queries.
// It keeps no state between requests.
type Service struct {
	db      Acquirer
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a new insights service. m may be nil.
func NewService(db Acquirer, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		logger:  logger.With(zap.String("component", "insights")),
		metrics: m,
	}
}

// Fetch validates raw and returns the matching metric records.
// Validation failures are returned unchanged and never touch the database.
// Database failures, including connection acquisition, are *warehouse.QueryExecutionError.
func (s *Service) Fetch(ctx context.Context, raw filters.RawFilters) ([]models.MetricRecord, error) {
	f, err := filters.Parse(raw)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordValidationError(filters.Field(err))
		}
		s.logger.Debug("rejected filters", zap.String("field", filters.Field(err)), zap.Error(err))
		return nil, err
	}

	start := time.Now()
	records, err := s.execute(ctx, f)
	duration := time.Since(start)

	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordQuery("error", duration, 0)
		}
		s.logger.Error("metrics query failed",
			zap.Int("active_filters", f.Active()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordActiveFilters(f.Active())
		s.metrics.RecordQuery("ok", duration, len(records))
	}
	s.logger.Debug("metrics query completed",
		zap.Int("active_filters", f.Active()),
		zap.Int("rows", len(records)),
		zap.Duration("duration", duration),
	)
	return records, nil
}

func (s *Service) execute(ctx context.Context, f filters.QueryFilters) ([]models.MetricRecord, error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, &warehouse.QueryExecutionError{Op: "acquire", Err: err}
	}
	defer conn.Release()

	return warehouse.Execute(ctx, conn, f)
}
