// Package mock is the development stand-in for the backend: simulated
// latency, fabricated but deterministic-shape data, same envelope semantics
// as the live client.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"fog-control/internal/devapi"
	"fog-control/internal/model"
)

type API struct {
	mu        sync.Mutex
	rng       *rand.Rand
	devices   []model.Device
	status    model.DeviceStatus
	schedules []model.Schedule
	alerts    []model.Alert
	history   []model.HistoryEvent
	recs      []model.Recommendation
	forecast  model.Forecast

	// Latency bounds; tests shrink these to zero.
	MinDelay time.Duration
	MaxDelay time.Duration
}

var _ devapi.API = (*API)(nil)

func New() *API {
	return NewWithSeed(time.Now().UnixNano())
}

func NewWithSeed(seed int64) *API {
	a := &API{
		rng:      rand.New(rand.NewSource(seed)),
		MinDelay: 200 * time.Millisecond,
		MaxDelay: 500 * time.Millisecond,
	}
	a.seed()
	return a
}

func (a *API) seed() {
	now := time.Now().UTC()
	a.devices = []model.Device{
		{ID: "AQUA001", Name: "Main Reservoir", Location: "North Field", Timezone: "UTC", LastSeen: now, Status: "online"},
		{ID: "AQUA002", Name: "Secondary Tank", Location: "South Field", Timezone: "UTC", LastSeen: now.Add(-time.Hour), Status: "offline"},
	}
	a.schedules = []model.Schedule{
		{ID: "s1", Target: "plants", NextRun: now.Add(18 * time.Hour), AmountL: 10, Frequency: "daily", Name: "Morning Plant Watering"},
		{ID: "s2", Target: "livestock", NextRun: now.Add(42 * time.Hour), AmountL: 25, Frequency: "daily", Name: "Livestock Watering"},
	}
	a.alerts = []model.Alert{
		{ID: "a1", Type: "low_water", LevelPercent: 12, TS: now.Add(-24 * time.Hour), Message: "Low water: Reservoir below 15% — take action", Acknowledged: false},
	}
	a.history = []model.HistoryEvent{
		{ID: "e1", Type: "irrigation", Target: "plants", AmountL: 10, Timestamp: now.Add(-time.Hour), Status: "completed"},
		{ID: "e2", Type: "refill", AmountL: 50, Timestamp: now.Add(-24 * time.Hour), Status: "completed"},
		{ID: "e3", Type: "irrigation", Target: "livestock", AmountL: 25, Timestamp: now.Add(-48 * time.Hour), Status: "completed"},
	}
	a.recs = []model.Recommendation{
		{ID: "r1", Priority: "high", Confidence: "high", Title: "Reduce plant watering by 20% for next 3 days", Description: "Rain expected in 5 days. Save ~15 L/day", Action: "reduce_watering", Target: "plants", Amount: -20, DurationDays: 3},
		{ID: "r2", Priority: "medium", Confidence: "medium", Title: "Check sensor calibration", Description: "Humidity readings seem inconsistent", Action: "calibrate"},
		{ID: "r3", Priority: "low", Confidence: "low", Title: "Consider increasing livestock schedule", Description: "Temperature rising, animals may need more water", Action: "increase_schedule", Target: "livestock"},
	}
	a.forecast = model.Forecast{
		Current:  model.CurrentConditions{TemperatureC: 18.7, HumidityPercent: 82.1, WindSpeedKMH: 12, Condition: "partly_cloudy"},
		Forecast: model.ForecastBlock{DaysUntilRain: 5, RainProbability: 40, Precipitation7Day: []float64{0, 0, 0, 0, 0, 2.5, 5.0}},
	}
	a.status = model.DeviceStatus{
		DeviceID:              "AQUA001",
		LastUpdate:            now,
		WaterVolumeL:          123.4,
		TankCapacityL:         200,
		PercentFull:           61.7,
		HumidityPercent:       82.1,
		TemperatureC:          18.7,
		DaysUntilExpectedRain: 5,
		NextWatering:          &model.WateringRecommendation{Target: "plants", When: now.Add(18 * time.Hour), AmountL: 10},
		Health: model.DeviceHealth{
			BatteryPercent:  85,
			BatteryVolt:     3.9,
			SignalStrength:  -60,
			FirmwareVersion: "1.2.3",
			LastPing:        now,
		},
	}
}

// delay simulates network latency without outliving the caller's context.
func (a *API) delay(ctx context.Context) error {
	a.mu.Lock()
	d := a.MinDelay
	if a.MaxDelay > a.MinDelay {
		d += time.Duration(a.rng.Int63n(int64(a.MaxDelay - a.MinDelay)))
	}
	a.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *API) Devices(ctx context.Context) ([]model.Device, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Device, len(a.devices))
	copy(out, a.devices)
	return out, nil
}

func (a *API) DeviceStatus(ctx context.Context, deviceID string) (*model.DeviceStatus, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range a.devices {
		if d.ID != deviceID {
			continue
		}
		st := a.status
		st.DeviceID = deviceID
		st.Schedules = append([]model.Schedule(nil), a.schedules...)
		st.Alerts = append([]model.Alert(nil), a.alerts...)
		return &st, nil
	}
	return nil, fmt.Errorf("device %s: %w", deviceID, devapi.ErrNotFound)
}

func (a *API) TimeSeries(ctx context.Context, deviceID string, rng model.Range) (*model.TimeSeries, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generateSeries(rng.Days()), nil
}

// generateSeries fabricates hourly random-walk samples, clamped per metric so
// charts stay plausible: water [50,200] L, humidity [40,95] %, temp [10,30] °C.
// Rain events fire with 10% probability.
func (a *API) generateSeries(days int) *model.TimeSeries {
	now := time.Now().UnixMilli()
	points := days * 24

	ts := &model.TimeSeries{}
	water, humidity, temp := 120.0, 80.0, 19.0
	for i := points; i >= 0; i-- {
		at := float64(now - int64(i)*3600_000)

		water = clamp(water+(a.rng.Float64()-0.5)*2, 50, 200)
		humidity = clamp(humidity+(a.rng.Float64()-0.5)*3, 40, 95)
		temp = clamp(temp+(a.rng.Float64()-0.5), 10, 30)

		rain := 0.0
		if a.rng.Float64() > 0.9 {
			rain = a.rng.Float64() * 5
		}

		ts.WaterVolume = append(ts.WaterVolume, model.Point{at, round1(water)})
		ts.Humidity = append(ts.Humidity, model.Point{at, round1(humidity)})
		ts.Temp = append(ts.Temp, model.Point{at, round1(temp)})
		ts.Rain = append(ts.Rain, model.Point{at, rain})
	}
	return ts
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func (a *API) Schedules(ctx context.Context, deviceID string) ([]model.Schedule, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Schedule(nil), a.schedules...), nil
}

func (a *API) CreateSchedule(ctx context.Context, s model.Schedule) (*model.Schedule, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s.ID = "s" + uuid.NewString()[:8]
	a.schedules = append(a.schedules, s)
	return &s, nil
}

func (a *API) UpdateSchedule(ctx context.Context, id string, s model.Schedule) (*model.Schedule, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.schedules {
		if a.schedules[i].ID == id {
			s.ID = id
			a.schedules[i] = s
			return &s, nil
		}
	}
	return nil, fmt.Errorf("schedule %s: %w", id, devapi.ErrNotFound)
}

func (a *API) DeleteSchedule(ctx context.Context, id string) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.schedules[:0]
	found := false
	for _, s := range a.schedules {
		if s.ID == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	a.schedules = out
	if !found {
		return fmt.Errorf("schedule %s: %w", id, devapi.ErrNotFound)
	}
	return nil
}

func (a *API) Alerts(ctx context.Context, deviceID string) ([]model.Alert, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Alert(nil), a.alerts...), nil
}

func (a *API) AcknowledgeAlert(ctx context.Context, id string) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.alerts {
		if a.alerts[i].ID == id {
			a.alerts[i].Acknowledged = true
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", id, devapi.ErrNotFound)
}

func (a *API) History(ctx context.Context, deviceID string, f model.HistoryFilter) ([]model.HistoryEvent, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return model.FilterHistory(a.history, f), nil
}

func (a *API) Forecast(ctx context.Context, deviceID string) (*model.Forecast, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fc := a.forecast
	fc.Forecast.Precipitation7Day = append([]float64(nil), a.forecast.Forecast.Precipitation7Day...)
	return &fc, nil
}

func (a *API) Recommendations(ctx context.Context, deviceID string) ([]model.Recommendation, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Recommendation(nil), a.recs...), nil
}

func (a *API) PostSensorData(ctx context.Context, u model.SensorUpdate) error {
	if err := a.delay(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.DeviceID == u.DeviceID {
		a.status.WaterVolumeL = u.WaterVolumeL
		a.status.HumidityPercent = u.HumidityPercent
		a.status.TemperatureC = u.TemperatureC
		a.status.LastUpdate = u.Timestamp
		a.status.RecomputePercentFull()
	}
	a.history = append(a.history, model.HistoryEvent{
		ID:        "e" + uuid.NewString()[:8],
		Type:      "reading",
		AmountL:   u.WaterVolumeL,
		Timestamp: u.Timestamp,
		Status:    "received",
	})
	return nil
}
