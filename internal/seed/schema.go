// Package seed provisions the ad metrics star schema and fills it with
// synthetic data for development and integration tests.
package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/radiusdt/adinsights/internal/models"
)

// DB is the subset of *pgxpool.Pool used for provisioning and loading.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type dimensionTable struct {
	name     string
	idColumn string
	label    string
}

const (
	dateTable = "dim_date"
	factTable = "fact_ad_metrics_daily"
)

// Dimension tables keyed by the dimension they store.
var dimensionTables = map[models.Dimension]dimensionTable{
	models.Region:     {"dim_region", "region_id", "region_name"},
	models.AgeGroup:   {"dim_age_group", "age_id", "age_range"},
	models.Gender:     {"dim_gender", "gender_id", "gender_name"},
	models.Platform:   {"dim_platform", "platform_id", "platform_name"},
	models.Placement:  {"dim_placement", "placement_id", "placement_name"},
	models.DeviceType: {"dim_device_type", "device_type_id", "device_type_name"},
}

var factColumns = []string{
	"date_id", "region_id", "age_id", "gender_id", "platform_id", "placement_id", "device_type_id",
	"impressions", "clicks", "cost", "conversions", "likes",
}

// Statements creates the schema. Dimension tables come first so the fact
// table's foreign keys resolve.
func Statements() []string {
	stmts := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	date_id SERIAL PRIMARY KEY,
	date_value DATE NOT NULL
)`, dateTable)}

	for _, d := range models.Dimensions {
		t := dimensionTables[d]
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s SERIAL PRIMARY KEY,
	%s TEXT NOT NULL
)`, t.name, t.idColumn, t.label))
	}

	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	date_id INT REFERENCES %s(date_id),
	region_id INT REFERENCES dim_region(region_id),
	age_id INT REFERENCES dim_age_group(age_id),
	gender_id INT REFERENCES dim_gender(gender_id),
	platform_id INT REFERENCES dim_platform(platform_id),
	placement_id INT REFERENCES dim_placement(placement_id),
	device_type_id INT REFERENCES dim_device_type(device_type_id),
	impressions INT,
	clicks INT,
	cost DECIMAL(10, 2),
	conversions INT,
	likes INT
)`, factTable, dateTable))

	return stmts
}

// Provision creates every table that does not exist yet, in one transaction.
func Provision(ctx context.Context, db DB) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range Statements() {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Truncate removes every fact row. Dimension rows are kept.
func Truncate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, "TRUNCATE TABLE "+factTable); err != nil {
		return fmt.Errorf("failed to truncate facts: %w", err)
	}
	return nil
}
