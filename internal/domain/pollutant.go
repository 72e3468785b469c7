package domain

import "strings"

// Canonical pollutant column names.
const (
	PM25 = "pm2_5"
	PM10 = "pm10"
	CO   = "co"
	NO   = "no"
	NO2  = "no2"
	O3   = "o3"
	SO2  = "so2"
	NH3  = "nh3"
)

// RequiredPollutants are the pollutant columns every dataset must carry.
var RequiredPollutants = []string{PM25, PM10, CO, NO, NO2}

// OptionalPollutants are loaded when present and ignored otherwise.
var OptionalPollutants = []string{O3, SO2, NH3}

var displayNames = map[string]string{
	PM25: "PM2.5",
	PM10: "PM10",
	CO:   "CO",
	NO:   "NO",
	NO2:  "NO2",
	O3:   "O3",
	SO2:  "SO2",
	NH3:  "NH3",
}

// Pollutants returns every known pollutant name, required ones first.
func Pollutants() []string {
	out := make([]string, 0, len(RequiredPollutants)+len(OptionalPollutants))
	out = append(out, RequiredPollutants...)
	return append(out, OptionalPollutants...)
}

// IsPollutant reports whether name is a canonical pollutant column.
func IsPollutant(name string) bool {
	_, ok := displayNames[name]
	return ok
}

// DisplayName returns the label used in charts and reports, e.g. "PM2.5".
// Unknown names are upper-cased.
func DisplayName(name string) string {
	if d, ok := displayNames[name]; ok {
		return d
	}
	return strings.ToUpper(name)
}

// PollutantColumns returns the pollutant columns present in t, in canonical order.
func PollutantColumns(t Table) []string {
	var cols []string
	for _, p := range Pollutants() {
		if t.HasColumn(p) {
			cols = append(cols, p)
		}
	}
	return cols
}
