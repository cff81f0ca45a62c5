package model

// Point is one time-series sample: [unix ms, value].
type Point [2]float64

// TimeSeries holds per-metric hourly samples for the charts.
type TimeSeries struct {
	WaterVolume []Point `json:"water_volume"`
	Humidity    []Point `json:"humidity"`
	Temp        []Point `json:"temp"`
	Rain        []Point `json:"rain"`
}

// Range is a chart time range. Unrecognized values behave as Range7D.
type Range string

const (
	Range24H Range = "24h"
	Range7D  Range = "7d"
	Range30D Range = "30d"
)

// Days returns the span in days for a range.
func (r Range) Days() int {
	switch r {
	case Range24H:
		return 1
	case Range30D:
		return 30
	default:
		return 7
	}
}
