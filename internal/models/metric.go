package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted date representation, YYYY-MM-DD.
const DateLayout = "2006-01-02"

func init() {
	// Cost is rendered as a JSON number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON renders the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// MetricRecord is one row of daily ad metrics with every dimension resolved to its label.
type MetricRecord struct {
	Date       Date   `json:"date"`
	Region     string `json:"region"`
	AgeGroup   string `json:"age_group"`
	Gender     string `json:"gender"`
	Platform   string `json:"platform"`
	Placement  string `json:"placement"`
	DeviceType string `json:"device_type"`

	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Cost        decimal.Decimal `json:"cost"`
	Conversions int64           `json:"conversions"`
	Likes       int64           `json:"likes"`
}

// Label returns the record's label for the given dimension.
func (m MetricRecord) Label(d Dimension) string {
	switch d {
	case Region:
		return m.Region
	case AgeGroup:
		return m.AgeGroup
	case Gender:
		return m.Gender
	case Platform:
		return m.Platform
	case Placement:
		return m.Placement
	case DeviceType:
		return m.DeviceType
	}
	return ""
}
