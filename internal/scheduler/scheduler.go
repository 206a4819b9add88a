// Package scheduler runs the service's background jobs on cron schedules.
// Jobs never touch the query path.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radiusdt/adinsights/internal/metrics"
)

const (
	JobHeartbeat = "heartbeat"
	JobPoolStats = "pool_stats"

	// LastRunKey holds the RFC 3339 time of the last heartbeat.
	LastRunKey = "adinsights:scheduler:last_run"
)

// KeyValueStore is the subset of a Redis client used to record heartbeats.
// *redis.Client satisfies it.
type KeyValueStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// PoolStats reports connection pool usage.
type PoolStats struct {
	Idle  int
	InUse int
	Total int
}

// Scheduler manages periodic jobs.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	store   KeyValueStore
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

// New creates a scheduler. store and m may be nil.
func New(logger *zap.Logger, store KeyValueStore, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger.With(zap.String("component", "scheduler")),
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// AddHeartbeat schedules the heartbeat job. spec accepts standard cron
// expressions and descriptors such as "@every 6h".
func (s *Scheduler) AddHeartbeat(spec string) error {
	return s.add(JobHeartbeat, spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Heartbeat(ctx)
	})
}

// AddPoolStats schedules sampling of stat into the connection gauges.
func (s *Scheduler) AddPoolStats(spec string, stat func() PoolStats) error {
	return s.add(JobPoolStats, spec, func() {
		s.SamplePool(stat)
	})
}

func (s *Scheduler) add(job, spec string, fn func()) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", job, spec, err)
	}
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job, err)
	}
	s.logger.Info("job scheduled", zap.String("job", job), zap.String("schedule", spec))
	return nil
}

// Heartbeat runs one heartbeat: it logs the run and stores its time when a
// store is configured.
func (s *Scheduler) Heartbeat(ctx context.Context) error {
	at := s.now().UTC()
	s.logger.Info("scheduled heartbeat executed", zap.Time("at", at))

	var err error
	if s.store != nil {
		if err = s.store.Set(ctx, LastRunKey, at.Format(time.RFC3339), 0).Err(); err != nil {
			err = fmt.Errorf("failed to record heartbeat: %w", err)
			s.logger.Warn("heartbeat bookkeeping failed", zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordSchedulerRun(JobHeartbeat, err, at)
	}
	return err
}

// SamplePool copies one pool snapshot into the metrics.
func (s *Scheduler) SamplePool(stat func() PoolStats) {
	ps := stat()
	if s.metrics != nil {
		s.metrics.UpdateDBStats(ps.Idle, ps.InUse, ps.Total)
		s.metrics.RecordSchedulerRun(JobPoolStats, nil, s.now())
	}
	s.logger.Debug("pool stats sampled",
		zap.Int("idle", ps.Idle),
		zap.Int("in_use", ps.InUse),
		zap.Int("total", ps.Total),
	)
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop interrupted: %w", ctx.Err())
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the earliest scheduled run, or nil when nothing is scheduled
// or the scheduler has not started.
func (s *Scheduler) NextRun() *time.Time {
	var next *time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next == nil || e.Next.Before(*next) {
			t := e.Next
			next = &t
		}
	}
	return next
}
