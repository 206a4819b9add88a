// Package filters turns raw request filter strings into validated query filters.
//
// Every categorical value is checked against its dimension's allow-list and the
// date range is parsed and ordered before any SQL is built.
package filters

import (
	"net/url"
	"strings"
	"time"

	"github.com/radiusdt/adinsights/internal/models"
)

const (
	FieldStartDate = "start_date"
	FieldEndDate   = "end_date"
)

// RawFilters holds the optional filter strings exactly as received from the transport.
// An empty string means the filter is absent.
type RawFilters struct {
	StartDate string
	EndDate   string
	Values    map[models.Dimension]string
}

// QueryFilters is a validated request. A nil or empty value slice means no filter on that dimension.
type QueryFilters struct {
	StartDate *time.Time
	EndDate   *time.Time
	Values    map[models.Dimension][]string
}

// Get returns the selected labels for a dimension, nil when unfiltered.
func (f QueryFilters) Get(d models.Dimension) []string {
	if f.Values == nil {
		return nil
	}
	return f.Values[d]
}

// Active returns the number of filters that will produce a predicate.
func (f QueryFilters) Active() int {
	n := 0
	if f.StartDate != nil {
		n++
	}
	if f.EndDate != nil {
		n++
	}
	for _, d := range models.Dimensions {
		if len(f.Get(d)) > 0 {
			n++
		}
	}
	return n
}

// ParseList splits a comma separated, optionally percent-encoded, list into
// distinct trimmed tokens. It returns nil when nothing remains.
func ParseList(raw string) []string {
	if raw == "" {
		return nil
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}

	var result []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(decoded, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		result = append(result, token)
	}
	return result
}

// ValidateEnum checks every value against the dimension's allow-list.
func ValidateEnum(d models.Dimension, values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	if err := getValidator().Var(values, dimensionTag(d)); err != nil {
		invalid := invalidValues(err)
		if len(invalid) == 0 {
			return nil, err
		}
		return nil, &InvalidFilterValueError{
			Dimension: d,
			Invalid:   invalid,
			Allowed:   d.Allowed(),
		}
	}
	return values, nil
}

// ValidateDateRange parses both bounds and checks that start is not after end.
func ValidateDateRange(start, end string) (*time.Time, *time.Time, error) {
	raw := dateRange{StartDate: start, EndDate: end}
	if err := getValidator().Struct(&raw); err != nil {
		return nil, nil, dateFormatError(err, raw)
	}

	startDate := parseDate(start)
	endDate := parseDate(end)
	if startDate != nil && endDate != nil && startDate.After(*endDate) {
		return nil, nil, &DateRangeInvertedError{Start: *startDate, End: *endDate}
	}
	return startDate, endDate, nil
}

// parseDate parses a value that already passed the datetime check.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

// Parse validates raw transport filters. Dates are checked first, then each
// dimension in models.Dimensions order; the first failure is returned.
func Parse(raw RawFilters) (QueryFilters, error) {
	start, end, err := ValidateDateRange(raw.StartDate, raw.EndDate)
	if err != nil {
		return QueryFilters{}, err
	}

	f := QueryFilters{
		StartDate: start,
		EndDate:   end,
		Values:    make(map[models.Dimension][]string),
	}
	for _, d := range models.Dimensions {
		values, err := ValidateEnum(d, ParseList(raw.Values[d]))
		if err != nil {
			return QueryFilters{}, err
		}
		if len(values) > 0 {
			f.Values[d] = values
		}
	}
	return f, nil
}
