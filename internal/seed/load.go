package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/radiusdt/adinsights/internal/models"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Statement is a built insert with its arguments.
type Statement struct {
	SQL  string
	Args []any
}

// DimensionInserts builds the idempotent inserts for every dimension table:
// days consecutive dates from start, then each allow-list with keys 1..n in
// allow-list order.
func DimensionInserts(start time.Time, days int) ([]Statement, error) {
	dates := psq.Insert(dateTable).Columns("date_id", "date_value")
	for i := 0; i < days; i++ {
		dates = dates.Values(i+1, start.AddDate(0, 0, i))
	}

	builders := []sq.InsertBuilder{dates}
	for _, d := range models.Dimensions {
		t := dimensionTables[d]
		b := psq.Insert(t.name).Columns(t.idColumn, t.label)
		for i, label := range d.Allowed() {
			b = b.Values(i+1, label)
		}
		builders = append(builders, b)
	}

	stmts := make([]Statement, 0, len(builders))
	for _, b := range builders {
		sql, args, err := b.Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build dimension insert: %w", err)
		}
		stmts = append(stmts, Statement{SQL: sql, Args: args})
	}
	return stmts, nil
}

// LoadDimensions inserts the dimension rows. Existing keys are left untouched.
func LoadDimensions(ctx context.Context, db DB, start time.Time, days int) error {
	if days < 1 {
		return fmt.Errorf("days must be at least 1, got %d", days)
	}

	stmts, err := DimensionInserts(start, days)
	if err != nil {
		return err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
			return fmt.Errorf("failed to insert dimension rows: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// FactRow is one synthetic fact. Keys reference dimension rows created by LoadDimensions.
type FactRow struct {
	DateID       int32
	RegionID     int32
	AgeID        int32
	GenderID     int32
	PlatformID   int32
	PlacementID  int32
	DeviceTypeID int32
	Impressions  int32
	Clicks       int32
	Cost         decimal.Decimal
	Conversions  int32
	Likes        int32
}

func (r FactRow) values() []any {
	return []any{
		r.DateID, r.RegionID, r.AgeID, r.GenderID, r.PlatformID, r.PlacementID, r.DeviceTypeID,
		r.Impressions, r.Clicks, r.Cost, r.Conversions, r.Likes,
	}
}

// GenerateFacts draws n random fact rows spread over days dates.
func GenerateFacts(n, days int, rng *rand.Rand) []FactRow {
	key := func(d models.Dimension) int32 {
		return int32(rng.Intn(len(d.Allowed())) + 1)
	}
	between := func(lo, hi int) int32 {
		return int32(lo + rng.Intn(hi-lo+1))
	}

	rows := make([]FactRow, n)
	for i := range rows {
		cost := 10 + rng.Float64()*490
		rows[i] = FactRow{
			DateID:       between(1, days),
			RegionID:     key(models.Region),
			AgeID:        key(models.AgeGroup),
			GenderID:     key(models.Gender),
			PlatformID:   key(models.Platform),
			PlacementID:  key(models.Placement),
			DeviceTypeID: key(models.DeviceType),
			Impressions:  between(1000, 10000),
			Clicks:       between(100, 1000),
			Cost:         decimal.NewFromFloat(math.Round(cost*100) / 100).Round(2),
			Conversions:  between(0, 200),
			Likes:        between(0, 500),
		}
	}
	return rows
}

// LoadFacts generates n fact rows and bulk loads them. It returns the number of rows copied.
func LoadFacts(ctx context.Context, db DB, n, days int, rng *rand.Rand) (int64, error) {
	if days < 1 {
		return 0, fmt.Errorf("days must be at least 1, got %d", days)
	}
	return CopyFacts(ctx, db, GenerateFacts(n, days, rng))
}

// CopyFacts bulk loads rows with COPY.
func CopyFacts(ctx context.Context, db DB, rows []FactRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	copied, err := db.CopyFrom(ctx,
		pgx.Identifier{factTable},
		factColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return rows[i].values(), nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy fact rows: %w", err)
	}
	return copied, nil
}
