package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/radiusdt/adinsights/internal/filters"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/radiusdt/adinsights/internal/warehouse"
	"github.com/radiusdt/adinsights/internal/warehouse/warehousetest"
)

type fakeAcquirer struct {
	conn     *warehousetest.Querier
	err      error
	acquired int
}

func (a *fakeAcquirer) Acquire(context.Context) (Conn, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.acquired++
	return a.conn, nil
}

func newTestService(t *testing.T, db Acquirer) (*Service, *metrics.Metrics, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewService(db, zap.New(core), m), m, logs
}

func TestFetchReturnsRecords(t *testing.T) {
	db := &fakeAcquirer{conn: &warehousetest.Querier{Rows: &warehousetest.Rows{Data: [][]any{
		warehousetest.MetricRow(2, "East", "42.50", 2500),
		warehousetest.MetricRow(4, "West", "17.25", 1800),
	}}}}
	svc, m, _ := newTestService(t, db)

	records, err := svc.Fetch(context.Background(), filters.RawFilters{
		StartDate: "2023-01-01",
		EndDate:   "2023-01-31",
		Values:    map[models.Dimension]string{models.Region: "East%2CWest"},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "East", records[0].Region)
	assert.Equal(t, "West", records[1].Region)

	_, args := db.conn.Last()
	require.Len(t, args, 3)
	assert.Equal(t, []string{"East", "West"}, args[2])

	assert.Equal(t, 1, db.acquired)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("ok")))
}

func TestFetchRejectsInvalidFiltersWithoutTouchingDatabase(t *testing.T) {
	db := &fakeAcquirer{conn: &warehousetest.Querier{}}
	svc, m, logs := newTestService(t, db)

	_, err := svc.Fetch(context.Background(), filters.RawFilters{
		Values: map[models.Dimension]string{models.Platform: "MySpace"},
	})

	var valueErr *filters.InvalidFilterValueError
	require.True(t, errors.As(err, &valueErr))
	assert.Equal(t, []string{"MySpace"}, valueErr.Invalid)
	assert.Equal(t, 0, db.acquired)
	assert.Equal(t, 0, db.conn.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationErrors.WithLabelValues("platform")))
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestFetchRejectsInvertedRange(t *testing.T) {
	db := &fakeAcquirer{conn: &warehousetest.Querier{}}
	svc, _, _ := newTestService(t, db)

	_, err := svc.Fetch(context.Background(), filters.RawFilters{StartDate: "2023-01-10", EndDate: "2023-01-01"})

	var rangeErr *filters.DateRangeInvertedError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, 0, db.acquired)
}

func TestFetchWrapsAcquireFailure(t *testing.T) {
	db := &fakeAcquirer{err: errors.New("pool exhausted")}
	svc, m, logs := newTestService(t, db)

	_, err := svc.Fetch(context.Background(), filters.RawFilters{})

	var execErr *warehouse.QueryExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "acquire", execErr.Op)
	assert.False(t, filters.IsClientError(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("error")))
	assert.Equal(t, 1, logs.FilterMessage("metrics query failed").Len())
}

func TestFetchSurfacesQueryFailure(t *testing.T) {
	db := &fakeAcquirer{conn: &warehousetest.Querier{Err: errors.New("connection reset by peer")}}
	svc, _, logs := newTestService(t, db)

	records, err := svc.Fetch(context.Background(), filters.RawFilters{})
	assert.Nil(t, records)

	var execErr *warehouse.QueryExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "query", execErr.Op)

	entries := logs.FilterMessage("metrics query failed").All()
	require.Len(t, entries, 1)
	for _, field := range entries[0].Context {
		assert.NotEqual(t, "sql", field.Key)
	}
}
