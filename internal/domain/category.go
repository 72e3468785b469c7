package domain

import "fmt"

// Category is an AQI band derived from a PM2.5 concentration. The zero value is
// CategoryUnknown.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryGood
	CategoryModerate
	CategoryUnhealthy
	CategoryHazardous
)

var categoryNames = map[Category]string{
	CategoryUnknown:   "Unknown",
	CategoryGood:      "Good",
	CategoryModerate:  "Moderate",
	CategoryUnhealthy: "Unhealthy",
	CategoryHazardous: "Hazardous",
}

// Categories returns the known categories from cleanest to most polluted.
// CategoryUnknown is not included.
func Categories() []Category {
	return []Category{CategoryGood, CategoryModerate, CategoryUnhealthy, CategoryHazardous}
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// MarshalText encodes the category by name so JSON output stays readable.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a category name produced by MarshalText.
func (c *Category) UnmarshalText(b []byte) error {
	for k, v := range categoryNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", string(b))
}
