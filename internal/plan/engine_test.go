package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fog-control/internal/model"
)

func TestDailyDemand(t *testing.T) {
	units := []DemandUnit{
		{Category: "human", Name: "Household", Count: 5, DailyNeedL: 20},
		{Category: "livestock", Name: "Goats", Count: 10, DailyNeedL: 4},
		{Category: "crop", Name: "Tomatoes", Count: 1, DailyNeedL: 30},
	}

	d := DailyDemand(units)
	assert.Equal(t, 100.0, d.Totals["human"])
	assert.Equal(t, 40.0, d.Totals["livestock"])
	assert.Equal(t, 30.0, d.Totals["crop"])
	assert.Equal(t, 170.0, d.TotalDailyLiters)
}

func TestDailyDemandEmpty(t *testing.T) {
	d := DailyDemand(nil)
	assert.Equal(t, 0.0, d.TotalDailyLiters)
}

func TestAvailability(t *testing.T) {
	statuses := []model.DeviceStatus{
		{DeviceID: "AQUA001", WaterVolumeL: 120, TankCapacityL: 200},
		{DeviceID: "AQUA002", WaterVolumeL: 30, TankCapacityL: 100},
	}

	a := Availability(statuses)
	assert.Equal(t, 150.0, a.AvailableLiters)
	assert.Equal(t, 300.0, a.CapacityLiters)
	assert.Len(t, a.Breakdown, 2)
}

func TestRiskWithoutRainData(t *testing.T) {
	tests := []struct {
		name      string
		available float64
		demand    float64
		want      string
	}{
		{"critical under 3 days", 50, 20, "critical"},
		{"high under 7 days", 100, 20, "high"},
		{"moderate otherwise", 200, 20, "moderate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Risk(tc.available, tc.demand, -1)
			assert.Equal(t, tc.want, r.RiskLevel)
			assert.Equal(t, -1, r.DaysUntilRain)
		})
	}
}

func TestRiskWithRainData(t *testing.T) {
	// 4 days of supply, rain in 6: supply runs out first and under 5 days.
	assert.Equal(t, "high", Risk(80, 20, 6).RiskLevel)
	// 6 days of supply, rain in 8: short of rain but above the 5-day floor.
	assert.Equal(t, "moderate", Risk(120, 20, 8).RiskLevel)
	// 6 days of supply, rain in 3: supply bridges the gap.
	assert.Equal(t, "low", Risk(120, 20, 3).RiskLevel)
}

func TestRiskZeroDemand(t *testing.T) {
	r := Risk(100, 0, -1)
	assert.Equal(t, 0.0, r.DaysOfSupply)
	assert.Equal(t, "critical", r.RiskLevel)
}

func TestSummarize(t *testing.T) {
	statuses := []model.DeviceStatus{{DeviceID: "AQUA001", WaterVolumeL: 120, TankCapacityL: 200}}
	units := []DemandUnit{{Category: "human", Count: 2, DailyNeedL: 10}}
	forecast := &model.Forecast{Forecast: model.ForecastBlock{DaysUntilRain: 5}}

	s := Summarize(statuses, units, forecast)
	assert.Equal(t, 120.0, s.Availability.AvailableLiters)
	assert.Equal(t, 20.0, s.Demand.TotalDailyLiters)
	assert.Equal(t, 6.0, s.Risk.DaysOfSupply)
	assert.Equal(t, "low", s.Risk.RiskLevel)

	// No forecast means no rain data.
	s = Summarize(statuses, units, nil)
	assert.Equal(t, -1, s.Risk.DaysUntilRain)
}
