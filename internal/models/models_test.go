package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionNames(t *testing.T) {
	want := []string{"region", "age_group", "gender", "platform", "placement", "device_type"}
	require.Len(t, Dimensions, len(want))
	for i, d := range Dimensions {
		assert.Equal(t, want[i], d.String())

		parsed, ok := ParseDimension(want[i])
		require.True(t, ok)
		assert.Equal(t, d, parsed)
	}

	_, ok := ParseDimension("country")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Dimension(42).String())
}

func TestDimensionAllows(t *testing.T) {
	assert.True(t, Region.Allows("East"))
	assert.False(t, Region.Allows("east"))
	assert.True(t, AgeGroup.Allows("<18"))
	assert.True(t, Platform.Allows("Google Ads"))
	assert.False(t, DeviceType.Allows(""))
}

func TestDimensionAllowedReturnsCopy(t *testing.T) {
	values := Gender.Allowed()
	values[0] = "Mutated"
	assert.Equal(t, []string{"Male", "Female", "Other"}, Gender.Allowed())
}

func TestMetricRecordJSON(t *testing.T) {
	rec := MetricRecord{
		Date:        NewDate(time.Date(2023, 1, 5, 13, 30, 0, 0, time.UTC)),
		Region:      "East",
		AgeGroup:    "18-25",
		Gender:      "Female",
		Platform:    "Google Ads",
		Placement:   "Feed",
		DeviceType:  "Mobile",
		Impressions: 5000,
		Clicks:      250,
		Cost:        decimal.RequireFromString("123.40"),
		Conversions: 12,
		Likes:       40,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2023-01-05", decoded["date"])
	assert.Equal(t, "Google Ads", decoded["platform"])
	assert.Equal(t, 123.4, decoded["cost"])
	assert.Equal(t, float64(5000), decoded["impressions"])
}

func TestMetricRecordLabel(t *testing.T) {
	rec := MetricRecord{Region: "West", DeviceType: "Tablet"}
	assert.Equal(t, "West", rec.Label(Region))
	assert.Equal(t, "Tablet", rec.Label(DeviceType))
	assert.Equal(t, "", rec.Label(Dimension(99)))
}
