// Package warehouse compiles validated filters into a single parameterized
// star-schema query and maps its rows into metric records.
package warehouse

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/radiusdt/adinsights/internal/filters"
	"github.com/radiusdt/adinsights/internal/models"
)

const (
	FactTable = "fact_ad_metrics_daily"

	dateColumn = "d.date_value"
)

// SQLQuery is a compiled statement with its positional arguments.
type SQLQuery struct {
	SQL  string
	Args []any
}

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Output columns in MetricRecord scan order.
var selectColumns = []string{
	"d.date_value",
	"r.region_name",
	"a.age_range",
	"g.gender_name",
	"p.platform_name",
	"pl.placement_name",
	"dt.device_type_name",
	"f.impressions",
	"f.clicks",
	"f.cost",
	"f.conversions",
	"f.likes",
}

var joins = []string{
	"dim_date d ON f.date_id = d.date_id",
	"dim_region r ON f.region_id = r.region_id",
	"dim_age_group a ON f.age_id = a.age_id",
	"dim_gender g ON f.gender_id = g.gender_id",
	"dim_platform p ON f.platform_id = p.platform_id",
	"dim_placement pl ON f.placement_id = pl.placement_id",
	"dim_device_type dt ON f.device_type_id = dt.device_type_id",
}

// Label column of each joined dimension table.
var labelColumns = map[models.Dimension]string{
	models.Region:     "r.region_name",
	models.AgeGroup:   "a.age_range",
	models.Gender:     "g.gender_name",
	models.Platform:   "p.platform_name",
	models.Placement:  "pl.placement_name",
	models.DeviceType: "dt.device_type_name",
}

func baseQuery() sq.SelectBuilder {
	qb := psq.Select(selectColumns...).From(FactTable + " f")
	for _, j := range joins {
		qb = qb.Join(j)
	}
	return qb
}

// Compile builds the statement for f. Only present filters add a predicate,
// in the order start date, end date, then models.Dimensions. Multi-value
// filters bind the whole label slice as one array parameter.
func Compile(f filters.QueryFilters) (SQLQuery, error) {
	qb := baseQuery()

	if f.StartDate != nil {
		qb = qb.Where(dateColumn+" >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		qb = qb.Where(dateColumn+" <= ?", *f.EndDate)
	}
	for _, d := range models.Dimensions {
		values := f.Get(d)
		if len(values) == 0 {
			continue
		}
		column, ok := labelColumns[d]
		if !ok {
			return SQLQuery{}, fmt.Errorf("no label column for dimension %s", d)
		}
		qb = qb.Where(column+" = ANY(?)", values)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return SQLQuery{}, fmt.Errorf("failed to build metrics query: %w", err)
	}
	return SQLQuery{SQL: query, Args: args}, nil
}
