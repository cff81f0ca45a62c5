package model

import "time"

// Device is a deployed fog-harvesting unit as returned by the device listing.
type Device struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
	Timezone string    `json:"timezone"`
	LastSeen time.Time `json:"lastSeen"`
	Status   string    `json:"status"` // online/offline
}

// WateringRecommendation is the next suggested watering action for a device.
type WateringRecommendation struct {
	Target  string    `json:"target"` // plants/livestock
	When    time.Time `json:"when"`
	AmountL float64   `json:"amount_l"`
}

type DeviceHealth struct {
	BatteryPercent  float64   `json:"battery_percent"`
	BatteryVolt     float64   `json:"battery_volt"`
	SignalStrength  int       `json:"signal_strength"` // dBm
	FirmwareVersion string    `json:"firmware_version"`
	LastPing        time.Time `json:"last_ping"`
}

// DeviceStatus is the per-device snapshot, replaced wholesale on each fetch.
type DeviceStatus struct {
	DeviceID              string                  `json:"device_id"`
	LastUpdate            time.Time               `json:"last_update"`
	WaterVolumeL          float64                 `json:"water_volume_l"`
	TankCapacityL         float64                 `json:"tank_capacity_l"`
	PercentFull           float64                 `json:"percent_full"`
	HumidityPercent       float64                 `json:"humidity_percent"`
	TemperatureC          float64                 `json:"temperature_c"`
	DaysUntilExpectedRain int                     `json:"days_until_expected_rain"`
	NextWatering          *WateringRecommendation `json:"next_watering_recommendation,omitempty"`
	Schedules             []Schedule              `json:"schedules"`
	Alerts                []Alert                 `json:"alerts"`
	Health                DeviceHealth            `json:"device_health"`
}

// RecomputePercentFull derives percent_full from the current volume and
// capacity. Skipped when capacity is not positive (prior value retained).
func (s *DeviceStatus) RecomputePercentFull() {
	if s.TankCapacityL <= 0 {
		return
	}
	s.PercentFull = 100 * s.WaterVolumeL / s.TankCapacityL
}

type Schedule struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"` // plants/livestock
	NextRun   time.Time `json:"next_run"`
	AmountL   float64   `json:"amount_l"`
	Frequency string    `json:"frequency"`
	Name      string    `json:"name"`
}

type Alert struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	LevelPercent float64   `json:"level_percent"`
	TS           time.Time `json:"ts"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
}

// CurrentConditions is the observed weather at the device site.
type CurrentConditions struct {
	TemperatureC    float64 `json:"temperature_c"`
	HumidityPercent float64 `json:"humidity_percent"`
	WindSpeedKMH    float64 `json:"wind_speed_kmh"`
	Condition       string  `json:"condition"`
}

type ForecastBlock struct {
	DaysUntilRain     int       `json:"days_until_rain"`
	RainProbability   float64   `json:"rain_probability"`
	Precipitation7Day []float64 `json:"precipitation_7day"` // mm per day
}

type Forecast struct {
	Current  CurrentConditions `json:"current"`
	Forecast ForecastBlock     `json:"forecast"`
}

type Recommendation struct {
	ID           string  `json:"id"`
	Priority     string  `json:"priority"`   // high/medium/low
	Confidence   string  `json:"confidence"` // high/medium/low
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Action       string  `json:"action,omitempty"`
	Target       string  `json:"target,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	DurationDays int     `json:"duration_days,omitempty"`
}

// SensorUpdate is a live sensor push applied optimistically to the current
// status (water volume plus ambient readings).
type SensorUpdate struct {
	DeviceID        string    `json:"device_id"`
	WaterVolumeL    float64   `json:"water_volume_l"`
	HumidityPercent float64   `json:"humidity_percent"`
	TemperatureC    float64   `json:"temperature_c"`
	Timestamp       time.Time `json:"timestamp"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatReply struct {
	Message string `json:"message"`
	Role    string `json:"role"`
}

// Plan is an AI-generated water plan as stored by the backend.
type Plan struct {
	ID        int64  `json:"id"`
	PlanText  string `json:"plan_text"`
	DateStart string `json:"date_start"`
	DateEnd   string `json:"date_end"`
	Status    string `json:"status"`
}
