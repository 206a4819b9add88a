package filters

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radiusdt/adinsights/internal/models"
)

// InvalidFilterValueError reports labels that are not in a dimension's allow-list.
type InvalidFilterValueError struct {
	Dimension models.Dimension
	Invalid   []string
	Allowed   []string
}

func (e *InvalidFilterValueError) Error() string {
	return fmt.Sprintf("Invalid %s values: %s. Allowed values are: %s",
		e.Dimension, strings.Join(e.Invalid, ", "), strings.Join(e.Allowed, ", "))
}

// InvalidDateFormatError reports a date parameter that is not a valid YYYY-MM-DD date.
type InvalidDateFormatError struct {
	Field string
	Value string
}

func (e *InvalidDateFormatError) Error() string {
	return fmt.Sprintf("Invalid %s format: %s. Expected format: YYYY-MM-DD.", e.Field, e.Value)
}

// DateRangeInvertedError reports a start date that falls after the end date.
type DateRangeInvertedError struct {
	Start time.Time
	End   time.Time
}

func (e *DateRangeInvertedError) Error() string {
	return "start_date cannot be after end_date"
}

// IsClientError reports whether err was caused by invalid request filters.
func IsClientError(err error) bool {
	var (
		valueErr  *InvalidFilterValueError
		formatErr *InvalidDateFormatError
		rangeErr  *DateRangeInvertedError
	)
	return errors.As(err, &valueErr) || errors.As(err, &formatErr) || errors.As(err, &rangeErr)
}

// Field returns the request parameter responsible for a client error, or "" for other errors.
func Field(err error) string {
	var (
		valueErr  *InvalidFilterValueError
		formatErr *InvalidDateFormatError
		rangeErr  *DateRangeInvertedError
	)
	switch {
	case errors.As(err, &valueErr):
		return valueErr.Dimension.String()
	case errors.As(err, &formatErr):
		return formatErr.Field
	case errors.As(err, &rangeErr):
		return "date_range"
	}
	return ""
}
