// Package plan holds the local planning arithmetic behind the dashboard
// summary: daily demand aggregation, usable-water availability, and the
// climatic risk signal. The AI planner itself lives behind the backend.
package plan

import "fog-control/internal/model"

// DemandUnit is one configured consumer of water (people, a herd, a crop plot).
type DemandUnit struct {
	Category     string  `json:"category"` // human/livestock/crop
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	DailyNeedL   float64 `json:"daily_need_liters"`
	AreaHectares float64 `json:"area_hectares,omitempty"`
}

type DemandResult struct {
	Totals           map[string]float64 `json:"totals"` // per category
	TotalDailyLiters float64            `json:"total_daily_liters"`
}

// DailyDemand aggregates liters per day across demand units by category.
func DailyDemand(units []DemandUnit) DemandResult {
	totals := map[string]float64{"human": 0, "livestock": 0, "crop": 0}
	for _, u := range units {
		totals[u.Category] += u.DailyNeedL * float64(u.Count)
	}
	total := 0.0
	for _, v := range totals {
		total += v
	}
	return DemandResult{Totals: totals, TotalDailyLiters: total}
}

type StorageBreakdown struct {
	DeviceID       string  `json:"device_id"`
	CurrentVolumeL float64 `json:"current_volume_liters"`
	CapacityL      float64 `json:"capacity_liters"`
}

type AvailabilityResult struct {
	AvailableLiters float64            `json:"available_liters"`
	CapacityLiters  float64            `json:"capacity_liters"`
	Breakdown       []StorageBreakdown `json:"breakdown"`
}

// Availability sums usable water across the known device statuses.
func Availability(statuses []model.DeviceStatus) AvailabilityResult {
	var out AvailabilityResult
	for _, st := range statuses {
		out.AvailableLiters += st.WaterVolumeL
		out.CapacityLiters += st.TankCapacityL
		out.Breakdown = append(out.Breakdown, StorageBreakdown{
			DeviceID:       st.DeviceID,
			CurrentVolumeL: st.WaterVolumeL,
			CapacityL:      st.TankCapacityL,
		})
	}
	return out
}

type RiskResult struct {
	DaysOfSupply  float64 `json:"days_of_supply"`
	DaysUntilRain int     `json:"days_until_rainfall"` // -1 when unknown
	RiskLevel     string  `json:"risk_level"`          // critical/high/moderate/low
}

// Risk applies the climatic constraints: compare days of supply against the
// expected rain window. daysUntilRain < 0 means no rain data.
func Risk(availableLiters, dailyDemandLiters float64, daysUntilRain int) RiskResult {
	days := 0.0
	if dailyDemandLiters > 0 {
		days = availableLiters / dailyDemandLiters
	}
	res := RiskResult{
		DaysOfSupply:  float64(int(days*100+0.5)) / 100,
		DaysUntilRain: daysUntilRain,
	}
	if daysUntilRain < 0 {
		switch {
		case days < 3:
			res.RiskLevel = "critical"
		case days < 7:
			res.RiskLevel = "high"
		default:
			res.RiskLevel = "moderate"
		}
		return res
	}
	if days < float64(daysUntilRain) {
		if days < 5 {
			res.RiskLevel = "high"
		} else {
			res.RiskLevel = "moderate"
		}
		return res
	}
	res.RiskLevel = "low"
	return res
}

// Summary is the aggregated dashboard block: availability, demand and risk in
// one response.
type Summary struct {
	Availability AvailabilityResult `json:"availability"`
	Demand       DemandResult       `json:"demand"`
	Risk         RiskResult         `json:"risk"`
}

func Summarize(statuses []model.DeviceStatus, units []DemandUnit, forecast *model.Forecast) Summary {
	avail := Availability(statuses)
	demand := DailyDemand(units)
	rain := -1
	if forecast != nil {
		rain = forecast.Forecast.DaysUntilRain
	}
	return Summary{
		Availability: avail,
		Demand:       demand,
		Risk:         Risk(avail.AvailableLiters, demand.TotalDailyLiters, rain),
	}
}
