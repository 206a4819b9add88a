// Package warehousetest provides in-memory pgx doubles for tests.
package warehousetest

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Rows is a pgx.Rows over fixed values. Each call to Query on a Querier gets a fresh cursor.
type Rows struct {
	Data    [][]any
	IterErr error
	ScanErr error

	pos    int
	closed bool
}

func (r *Rows) Close()                                       { r.closed = true }
func (r *Rows) Err() error                                   { return r.IterErr }
func (r *Rows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) RawValues() [][]byte                          { return nil }
func (r *Rows) Conn() *pgx.Conn                              { return nil }

// Closed reports whether Close was called.
func (r *Rows) Closed() bool { return r.closed }

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.Data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Values() ([]any, error) {
	return r.Data[r.pos-1], nil
}

func (r *Rows) Scan(dest ...any) error {
	if r.ScanErr != nil {
		return r.ScanErr
	}
	row := r.Data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, v := range row {
		target := reflect.ValueOf(dest[i]).Elem()
		value := reflect.ValueOf(v)
		if !value.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: column %d: cannot assign %T to %s", i, v, target.Type())
		}
		target.Set(value)
	}
	return nil
}

// Querier records every statement and answers with Rows or Err.
type Querier struct {
	Rows *Rows
	Err  error

	mu    sync.Mutex
	calls int
	sql   string
	args  []any
}

func (q *Querier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.calls++
	q.sql = sql
	q.args = args
	if q.Err != nil {
		return nil, q.Err
	}
	if q.Rows == nil {
		q.Rows = &Rows{}
	}
	q.Rows.pos = 0
	q.Rows.closed = false
	return q.Rows, nil
}

// Calls returns how many statements were run.
func (q *Querier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// Last returns the most recent statement and its arguments.
func (q *Querier) Last() (string, []any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sql, q.args
}

// Release lets a Querier stand in for a borrowed pool connection.
func (q *Querier) Release() {}

// MetricRow builds one joined result row in select-column order.
func MetricRow(day int, region, cost string, impressions int64) []any {
	return []any{
		time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC),
		region, "26-35", "Female", "Instagram", "Stories", "Mobile",
		impressions, int64(300), decimal.RequireFromString(cost), int64(7), int64(55),
	}
}
