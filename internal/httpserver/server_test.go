package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/filters"
	"github.com/radiusdt/adinsights/internal/insights"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/middleware"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/radiusdt/adinsights/internal/warehouse"
	"github.com/radiusdt/adinsights/internal/warehouse/warehousetest"
)

type stubFetcher struct {
	records     []models.MetricRecord
	err         error
	raw         filters.RawFilters
	calls       int
	hadDeadline bool
}

func (f *stubFetcher) Fetch(ctx context.Context, raw filters.RawFilters) ([]models.MetricRecord, error) {
	f.calls++
	f.raw = raw
	_, f.hadDeadline = ctx.Deadline()
	return f.records, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{QueryTimeout: 5 * time.Second},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, f Fetcher, checks map[string]HealthCheck) (http.Handler, *metrics.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	return NewServer(&Dependencies{
		Config:   testConfig(),
		Logger:   zap.NewNop(),
		Metrics:  m,
		Gatherer: reg,
		Insights: f,
		Checks:   checks,
	}), m
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func sampleRecord() models.MetricRecord {
	return models.MetricRecord{
		Date:        models.NewDate(time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)),
		Region:      "East",
		AgeGroup:    "18-25",
		Gender:      "Male",
		Platform:    "Facebook",
		Placement:   "Feed",
		DeviceType:  "Desktop",
		Impressions: 5000,
		Clicks:      250,
		Cost:        decimal.RequireFromString("123.45"),
		Conversions: 12,
		Likes:       80,
	}
}

func TestRoot(t *testing.T) {
	h, _ := newTestServer(t, &stubFetcher{}, nil)

	rec := do(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"adinsights API is running"}`, rec.Body.String())
}

func TestFetchDataReturnsRecords(t *testing.T) {
	f := &stubFetcher{records: []models.MetricRecord{sampleRecord()}}
	h, m := newTestServer(t, f, nil)

	rec := do(h, http.MethodGet, "/fetch-data?start_date=2023-01-01&end_date=2023-01-31&region=East%2CWest&device_type=Desktop")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":[{
		"date":"2023-01-05","region":"East","age_group":"18-25","gender":"Male",
		"platform":"Facebook","placement":"Feed","device_type":"Desktop",
		"impressions":5000,"clicks":250,"cost":123.45,"conversions":12,"likes":80
	}]}`, rec.Body.String())

	assert.Equal(t, "2023-01-01", f.raw.StartDate)
	assert.Equal(t, "2023-01-31", f.raw.EndDate)
	assert.Equal(t, "East,West", f.raw.Values[models.Region])
	assert.Equal(t, "Desktop", f.raw.Values[models.DeviceType])
	assert.NotContains(t, f.raw.Values, models.Gender)
	assert.True(t, f.hadDeadline)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/fetch-data", "200")))
}

func TestFetchDataTrailingSlash(t *testing.T) {
	f := &stubFetcher{}
	h, _ := newTestServer(t, f, nil)

	rec := do(h, http.MethodGet, "/fetch-data/?platform=Instagram")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Instagram", f.raw.Values[models.Platform])
}

func TestFetchDataEmptyResultIsArray(t *testing.T) {
	h, _ := newTestServer(t, &stubFetcher{records: []models.MetricRecord{}}, nil)

	rec := do(h, http.MethodGet, "/fetch-data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestFetchDataErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantDetail string
	}{
		{
			name:       "invalid value",
			err:        &filters.InvalidFilterValueError{Dimension: models.Platform, Invalid: []string{"MySpace"}},
			wantCode:   http.StatusBadRequest,
			wantDetail: (&filters.InvalidFilterValueError{Dimension: models.Platform, Invalid: []string{"MySpace"}}).Error(),
		},
		{
			name:       "bad date",
			err:        &filters.InvalidDateFormatError{Field: filters.FieldStartDate, Value: "2023-13-01"},
			wantCode:   http.StatusBadRequest,
			wantDetail: "Invalid start_date format: 2023-13-01. Expected format: YYYY-MM-DD.",
		},
		{
			name:       "inverted range",
			err:        &filters.DateRangeInvertedError{},
			wantCode:   http.StatusBadRequest,
			wantDetail: "start_date cannot be after end_date",
		},
		{
			name:       "database failure",
			err:        &warehouse.QueryExecutionError{Op: "query", Err: errors.New(`relation "fact_ad_metrics_daily" does not exist`)},
			wantCode:   http.StatusInternalServerError,
			wantDetail: "Database error",
		},
		{
			name:       "unexpected failure",
			err:        errors.New("boom"),
			wantCode:   http.StatusInternalServerError,
			wantDetail: "Database error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestServer(t, &stubFetcher{err: tt.err}, nil)

			rec := do(h, http.MethodGet, "/fetch-data")
			assert.Equal(t, tt.wantCode, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantDetail, body["detail"])
			assert.NotContains(t, rec.Body.String(), "fact_ad_metrics_daily")
		})
	}
}

func TestFetchDataRejectsOtherMethods(t *testing.T) {
	f := &stubFetcher{}
	h, _ := newTestServer(t, f, nil)

	rec := do(h, http.MethodPost, "/fetch-data")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, f.calls)
}

func TestFetchDataThroughService(t *testing.T) {
	conn := &warehousetest.Querier{Rows: &warehousetest.Rows{Data: [][]any{
		warehousetest.MetricRow(2, "East", "42.50", 2500),
	}}}
	svc := insights.NewService(acquirerFunc(func(context.Context) (insights.Conn, error) {
		return conn, nil
	}), zap.NewNop(), nil)
	h, _ := newTestServer(t, svc, nil)

	rec := do(h, http.MethodGet, "/fetch-data?region=East,West&gender=Female")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cost":42.5`)

	sql, args := conn.Last()
	assert.Contains(t, sql, "r.region_name = ANY($1)")
	assert.Contains(t, sql, "g.gender_name = ANY($2)")
	assert.Equal(t, []any{[]string{"East", "West"}, []string{"Female"}}, args)

	rec = do(h, http.MethodGet, "/fetch-data?gender=Unknown")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, conn.Calls())
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, &stubFetcher{}, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	rec := do(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h, _ = newTestServer(t, &stubFetcher{}, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec = do(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","failed":{"redis":"connection refused"}}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &stubFetcher{}, nil)
	do(h, http.MethodGet, "/")

	rec := do(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

type acquirerFunc func(context.Context) (insights.Conn, error)

func (f acquirerFunc) Acquire(ctx context.Context) (insights.Conn, error) { return f(ctx) }

func TestRateLimitedRequestsAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	cfg.Metrics.Path = "/internal/metrics"

	h := NewServer(&Dependencies{
		Config:   cfg,
		Logger:   zap.NewNop(),
		Metrics:  m,
		Gatherer: reg,
		Insights: &stubFetcher{},
		Checks:   map[string]HealthCheck{"postgres": func(context.Context) error { return nil }},
	})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/fetch-data").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/fetch-data").Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/fetch-data", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues("/fetch-data")))

	// Health and a relocated metrics path bypass the exhausted bucket.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/internal/metrics").Code)
}

func TestUnknownPathsShareOneLabel(t *testing.T) {
	h, m := newTestServer(t, &stubFetcher{}, nil)

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/junk/"+strconv.Itoa(i)).Code)
	}
	assert.Equal(t, 50.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(middleware.UnmatchedRoute, "404")))
}

func TestFetchDataIgnoresUnknownAndEmptyParams(t *testing.T) {
	f := &stubFetcher{}
	h, _ := newTestServer(t, f, nil)

	rec := do(h, http.MethodGet, "/fetch-data?utm_source=mail&gender=&platform=Facebook&platform=Instagram")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, map[models.Dimension]string{models.Platform: "Facebook"}, f.raw.Values)
}
