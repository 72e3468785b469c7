// Package domain models hourly air-quality observations and the values derived
// from them.
//
// # Data Source
//
// Input datasets are flat CSV exports with one row per observation: a
// timestamp plus pollutant concentrations. The canonical columns are
//
//	date,co,no,no2,o3,so2,pm2_5,pm10,nh3
//
// where only the timestamp, pm2_5, pm10, co, no and no2 are required. Header
// names are matched case-insensitively and in any order; "PM2.5", "pm25" and
// "PM₂.₅" all resolve to pm2_5 (see the csvsource adapter).
//
// # Units
//
// Particulate matter (pm2_5, pm10) is reported in µg/m³. Gas concentrations
// (co, no, no2, o3, so2, nh3) are also µg/m³ in the source exports; no unit
// conversion is applied.
//
// # Missing Values
//
// A missing cell is stored as NaN inside a [Table]. [Observation] values omit
// missing cells entirely, so a row view never carries NaN.
//
// # AQI Categories
//
// PM2.5 concentrations map to four ordered categories using half-open bands
// [lower, upper) in µg/m³:
//
//	Good       0    – 12
//	Moderate   12   – 35.4
//	Unhealthy  35.4 – 55.4
//	Hazardous  ≥ 55.4
//
// The classifier itself lives in the interpretation package; this package only
// defines [Category] and its ordering.
//
// # Errors
//
// Three error types cover every failure the pipeline reports before any
// artifact is written: [SchemaError] for missing or conflicting columns,
// [ParseError] for malformed cells, and [InsufficientDataError] when a
// statistic needs more samples than the table has. Each matches a sentinel
// via errors.Is ([ErrSchema], [ErrParse], [ErrInsufficientData]).
package domain
