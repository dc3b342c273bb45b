// Package domain models daily weather observations and the column-oriented
// frames the feature pipeline reads and writes.
//
// # Data Source
//
// Observations are one row per weather station per day, as published in the
// Bureau of Meteorology daily summaries. Each row carries a station
// identifier, a date, and a mix of numeric and categorical measurements:
//
//	Location       station identifier, CamelCase words ("MountGambier")
//	Date           observation date, "2020-01-15" or an RFC 3339 timestamp
//	MinTemp        °C           MaxTemp        °C
//	Rainfall       mm           Evaporation    mm (class A pan)
//	Sunshine       hours        WindGustSpeed  km/h
//	WindSpeed9am   km/h         WindSpeed3pm   km/h
//	Humidity9am    percent      Humidity3pm    percent
//	Pressure9am    hPa          Pressure3pm    hPa
//	Cloud9am       oktas        Cloud3pm       oktas
//	Temp9am        °C           Temp3pm        °C
//	WindGustDir    compass point, categorical
//
// # Missing Values
//
// Unrecorded measurements appear as empty fields or the tokens NA, NaN, nan,
// null. In a [Frame] a missing numeric value is NaN and a missing
// categorical value is the empty string. See [IsMissingToken].
//
// # Derived Columns
//
// The feature pipeline appends columns and never drops input columns:
//
//	Month, Year, SimplifiedDate      calendar fields from Date (UTC)
//	Latitude, Longitude              joined from the coordinate table
//	RegionCluster                    k-means cluster of the station; NaN when unseen at fit
//	<col>_cap                        IQR-capped copy of a numeric column
//	<col>_log                        log1p of the uncapped value
//	Rainfall_cat, Evaporation_cat    three ordered bands: low, medium, high
//
// # Messages
//
// On the streaming path each Kafka message is one flat JSON observation
// ([ParseObservation]); each output message is one feature row keyed by
// "<Location>|<SimplifiedDate>" ([SerializeFeatureRows]).
package domain
