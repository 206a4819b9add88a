package models

// Dimension identifies one categorical dimension of the ad metrics star schema.
type Dimension int

const (
	Region Dimension = iota
	AgeGroup
	Gender
	Platform
	Placement
	DeviceType
)

// Dimensions lists every categorical dimension in predicate order.
var Dimensions = []Dimension{Region, AgeGroup, Gender, Platform, Placement, DeviceType}

var dimensionNames = map[Dimension]string{
	Region:     "region",
	AgeGroup:   "age_group",
	Gender:     "gender",
	Platform:   "platform",
	Placement:  "placement",
	DeviceType: "device_type",
}

// Allowed labels per dimension. The position of a label is its surrogate key minus one.
var allowedValues = map[Dimension][]string{
	Region:     {"East", "West", "North", "South"},
	AgeGroup:   {"<18", "18-25", "26-35", "36-50", "50+"},
	Gender:     {"Male", "Female", "Other"},
	Platform:   {"Facebook", "Google Ads", "Instagram", "LinkedIn"},
	Placement:  {"Feed", "Stories", "Search", "Sidebar"},
	DeviceType: {"Mobile", "Desktop", "Tablet"},
}

// String returns the request parameter name of the dimension.
func (d Dimension) String() string {
	if name, ok := dimensionNames[d]; ok {
		return name
	}
	return "unknown"
}

// Allowed returns a copy of the dimension's allow-list.
func (d Dimension) Allowed() []string {
	values := allowedValues[d]
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Allows reports whether value is a known label of the dimension.
func (d Dimension) Allows(value string) bool {
	for _, v := range allowedValues[d] {
		if v == value {
			return true
		}
	}
	return false
}

// ParseDimension resolves a request parameter name to its dimension.
func ParseDimension(name string) (Dimension, bool) {
	for d, n := range dimensionNames {
		if n == name {
			return d, true
		}
	}
	return 0, false
}
