package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/radiusdt/adinsights/internal/filters"
	"github.com/radiusdt/adinsights/internal/models"
)

// Querier runs a parameterized statement. *pgxpool.Pool, *pgxpool.Conn,
// *pgx.Conn and pgx.Tx all satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// QueryExecutionError wraps a database failure while running the metrics query.
// Callers should treat it as a retryable infrastructure error.
type QueryExecutionError struct {
	Op  string
	Err error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("metrics query failed during %s: %v", e.Op, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// Execute compiles f, runs it once on q and maps every row in database order.
// The connection is borrowed; Execute never closes or retries it.
func Execute(ctx context.Context, q Querier, f filters.QueryFilters) ([]models.MetricRecord, error) {
	query, err := Compile(f)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, &QueryExecutionError{Op: "query", Err: err}
	}
	defer rows.Close()

	records := make([]models.MetricRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &QueryExecutionError{Op: "scan", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryExecutionError{Op: "iterate", Err: err}
	}

	return records, nil
}

func scanRecord(row pgx.Row) (models.MetricRecord, error) {
	var rec models.MetricRecord
	err := row.Scan(
		&rec.Date.Time,
		&rec.Region, &rec.AgeGroup, &rec.Gender,
		&rec.Platform, &rec.Placement, &rec.DeviceType,
		&rec.Impressions, &rec.Clicks, &rec.Cost, &rec.Conversions, &rec.Likes,
	)
	if err != nil {
		return models.MetricRecord{}, err
	}
	rec.Cost = rec.Cost.Round(2)
	return rec, nil
}
