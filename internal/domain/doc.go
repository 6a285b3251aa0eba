// Package domain models NOAA atmospheric CO2 and daily weather observations
// as they move from the public feeds into the warehouse.
//
// # CO2 Feed
//
// The Global Monitoring Laboratory publishes daily Mauna Loa averages at
// https://gml.noaa.gov/webdata/ccgg/trends/co2/co2_daily_mlo.txt as
// whitespace-delimited text:
//
//	# comment lines start with a hash
//	  1974     5    19   1974.3781     333.37
//
// Columns are year, month, day, decimal date and the CO2 mole fraction in
// ppm. Comment and blank lines are dropped before parsing. Every remaining
// line must carry exactly five fields; one malformed line rejects the whole
// feed (see [ShapeError]) so partial batches never reach the aggregates.
//
// # Staged CSV
//
// A parsed feed is staged as CSV with the header
//
//	year,month,day,decimal_date,co2
//
// and floats written in their shortest round-trip form, so encoding the same
// records twice produces identical bytes and [DecodeCSV] recovers the exact
// values. See [EncodeCSV].
//
// # Weather Observations
//
// Daily average temperature (TAVG) comes from the NCEI Climate Data Online v2
// API. Requests are issued per station and per calendar year; the window for
// the current year ends today. See [YearWindows].
//
// # Percent Change
//
// [PercentChange] is the scalar used by the daily (1-row lookback) and weekly
// (7-row lookback) change tables. It is null when the previous value is null
// or zero.
package domain
