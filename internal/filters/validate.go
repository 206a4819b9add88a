package filters

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/radiusdt/adinsights/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// dateRange carries the raw date parameters through struct validation.
// The layout is fixed width, so unpadded parts and out-of-range months or days fail.
type dateRange struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// getValidator returns the shared validator. Every dimension is registered as
// a tag named after its request parameter that checks the allow-list.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their request parameter name.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		for _, d := range models.Dimensions {
			d := d
			// Only fails for a programming error in the tag name.
			_ = validate.RegisterValidation(d.String(), func(fl validator.FieldLevel) bool {
				return d.Allows(fl.Field().String())
			})
		}
	})
	return validate
}

// dimensionTag validates every element of a label slice against d's allow-list.
func dimensionTag(d models.Dimension) string {
	return "dive," + d.String()
}

// invalidValues collects the offending elements reported by a dive validation.
func invalidValues(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	values := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if v, ok := fe.Value().(string); ok {
			values = append(values, v)
		}
	}
	return values
}

// dateFormatError converts the first failing date field into an InvalidDateFormatError.
func dateFormatError(err error, raw dateRange) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	field := fieldErrs[0].Field()
	value := raw.StartDate
	if field == FieldEndDate {
		value = raw.EndDate
	}
	return &InvalidDateFormatError{Field: field, Value: value}
}
