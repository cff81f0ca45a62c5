// Package devstate holds the per-process device state: the selected device,
// its status snapshot, time series, schedules, alerts, history, forecast and
// recommendations. All mutation funnels through the store; consumers observe
// it via Snapshot and the coalesced Subscribe channel.
package devstate

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"fog-control/internal/devapi"
	"fog-control/internal/model"
)

type Store struct {
	api devapi.API
	log *zap.Logger

	mu        sync.RWMutex
	devices   []model.Device
	current   string
	status    *model.DeviceStatus
	series    *model.TimeSeries
	schedules []model.Schedule
	alerts    []model.Alert
	history   []model.HistoryEvent
	forecast  *model.Forecast
	recs      []model.Recommendation
	loading   bool
	lastErr   string

	// gen fences the fetch fan-out: a response fetched under an older
	// generation (device since switched) is dropped instead of overwriting
	// fresher state.
	gen atomic.Int64

	subMu sync.Mutex
	subs  map[int64]chan struct{}
	subID atomic.Int64
}

func NewStore(api devapi.API, log *zap.Logger) *Store {
	return &Store{
		api:  api,
		log:  log,
		subs: map[int64]chan struct{}{},
	}
}

// Snapshot is a copy of the store state safe to hand to HTTP/SSE consumers.
type Snapshot struct {
	Devices         []model.Device         `json:"devices"`
	CurrentDeviceID string                 `json:"current_device_id"`
	Status          *model.DeviceStatus    `json:"status,omitempty"`
	TimeSeries      *model.TimeSeries      `json:"time_series,omitempty"`
	Schedules       []model.Schedule       `json:"schedules"`
	Alerts          []model.Alert          `json:"alerts"`
	History         []model.HistoryEvent   `json:"history"`
	Forecast        *model.Forecast        `json:"forecast,omitempty"`
	Recommendations []model.Recommendation `json:"recommendations"`
	Loading         bool                   `json:"loading"`
	Error           string                 `json:"error,omitempty"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Devices:         append([]model.Device(nil), s.devices...),
		CurrentDeviceID: s.current,
		Schedules:       append([]model.Schedule(nil), s.schedules...),
		Alerts:          append([]model.Alert(nil), s.alerts...),
		History:         append([]model.HistoryEvent(nil), s.history...),
		Recommendations: append([]model.Recommendation(nil), s.recs...),
		Loading:         s.loading,
		Error:           s.lastErr,
	}
	if s.status != nil {
		st := *s.status
		snap.Status = &st
	}
	if s.series != nil {
		ts := *s.series
		snap.TimeSeries = &ts
	}
	if s.forecast != nil {
		fc := *s.forecast
		snap.Forecast = &fc
	}
	return snap
}

func (s *Store) CurrentDeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SetCurrentDevice switches the active device: previous device data is
// discarded and the full fan-out of slice fetches fires for the new id. The
// fetches are independent; each slice becomes visible as soon as its own call
// resolves.
func (s *Store) SetCurrentDevice(ctx context.Context, deviceID string) {
	s.mu.Lock()
	gen := s.gen.Add(1)
	s.current = deviceID
	s.status = nil
	s.series = nil
	s.schedules = nil
	s.alerts = nil
	s.history = nil
	s.forecast = nil
	s.recs = nil
	s.mu.Unlock()
	s.notify()

	go s.fetchStatus(ctx, deviceID, gen)
	go s.fetchSeries(ctx, deviceID, model.Range7D, gen)
	go s.fetchSchedules(ctx, deviceID, gen)
	go s.fetchAlerts(ctx, deviceID, gen)
	go s.fetchHistory(ctx, deviceID, model.HistoryFilter{}, gen)
	go s.fetchForecast(ctx, deviceID, gen)
	go s.fetchRecommendations(ctx, deviceID, gen)
}

// FetchDevices loads the device list and auto-selects the first device when
// none is selected yet. Re-calls with a selection in place never reselect.
func (s *Store) FetchDevices(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()

	devices, err := s.api.Devices(ctx)
	if err != nil {
		s.recordErr("fetch devices", err)
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.notify()
		return
	}

	s.mu.Lock()
	s.devices = devices
	s.loading = false
	autoSelect := s.current == "" && len(devices) > 0
	s.mu.Unlock()
	s.notify()

	if autoSelect {
		s.SetCurrentDevice(ctx, devices[0].ID)
	}
}

// RefreshCurrent re-fetches the fast-moving slices (status, alerts) for the
// selected device. The dashboard poller drives this on a fixed interval.
func (s *Store) RefreshCurrent(ctx context.Context) {
	// id and gen read together under the lock so they describe the same
	// selection.
	s.mu.RLock()
	id := s.current
	gen := s.gen.Load()
	s.mu.RUnlock()
	if id == "" {
		return
	}
	go s.fetchStatus(ctx, id, gen)
	go s.fetchAlerts(ctx, id, gen)
}

func (s *Store) FetchStatus(ctx context.Context, deviceID string) {
	s.fetchStatus(ctx, deviceID, s.gen.Load())
}

// FetchTimeSeries replaces the held series wholesale. Unrecognized ranges
// behave as 7d.
func (s *Store) FetchTimeSeries(ctx context.Context, deviceID string, rng model.Range) {
	s.fetchSeries(ctx, deviceID, rng, s.gen.Load())
}

func (s *Store) FetchSchedules(ctx context.Context, deviceID string) {
	s.fetchSchedules(ctx, deviceID, s.gen.Load())
}

func (s *Store) FetchAlerts(ctx context.Context, deviceID string) {
	s.fetchAlerts(ctx, deviceID, s.gen.Load())
}

func (s *Store) FetchHistory(ctx context.Context, deviceID string, f model.HistoryFilter) {
	s.fetchHistory(ctx, deviceID, f, s.gen.Load())
}

func (s *Store) FetchForecast(ctx context.Context, deviceID string) {
	s.fetchForecast(ctx, deviceID, s.gen.Load())
}

func (s *Store) FetchRecommendations(ctx context.Context, deviceID string) {
	s.fetchRecommendations(ctx, deviceID, s.gen.Load())
}

// apply runs fn under the write lock only while gen is still the live
// generation AND deviceID is still the selected device. The double check
// closes the window where a fetch reads the old id but a fresh gen;
// completions failing either check are dropped.
func (s *Store) apply(deviceID string, gen int64, fn func()) bool {
	if s.gen.Load() != gen {
		return false
	}
	s.mu.Lock()
	if s.gen.Load() != gen || s.current != deviceID {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()
	s.notify()
	return true
}

// recordGenErr implements the read-path failure policy: the message lands in
// the shared last-error field, prior slice data stays untouched.
func (s *Store) recordGenErr(deviceID string, gen int64, op string, err error) {
	if !s.apply(deviceID, gen, func() { s.lastErr = err.Error() }) {
		return
	}
	s.log.Warn(op+" failed", zap.Error(err))
}

func (s *Store) recordErr(op string, err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.log.Warn(op+" failed", zap.Error(err))
	s.notify()
}

func (s *Store) fetchStatus(ctx context.Context, deviceID string, gen int64) {
	st, err := s.api.DeviceStatus(ctx, deviceID)
	if err != nil {
		s.recordGenErr(deviceID, gen, "fetch status", err)
		return
	}
	s.apply(deviceID, gen, func() { s.status = st })
}

func (s *Store) fetchSeries(ctx context.Context, deviceID string, rng model.Range, gen int64) {
	ts, err := s.api.TimeSeries(ctx, deviceID, rng)
	if err != nil {
		s.recordGenErr(deviceID, gen, "fetch timeseries", err)
		return
	}
	s.apply(deviceID, gen, func() { s.series = ts })
}

func (s *Store) fetchSchedules(ctx context.Context, deviceID string, gen int64) {
	list, err := s.api.Schedules(ctx, deviceID)
	if err != nil {
		s.recordGenErr(deviceID, gen, "fetch schedules", err)
		return
	}
	s.apply(deviceID, gen, func() { s.schedules = list })
}

func (s *Store) fetchAlerts(ctx context.Context, deviceID string, gen int64) {
	list, err := s.api.Alerts(ctx, deviceID)
	if err != nil {
		s.recordGenErr(deviceID, gen, "fetch alerts", err)
		return
	}
	s.apply(deviceID, gen, func() { s.alerts = list })
}

func (s *Store) fetchHistory(ctx context.Context, deviceID string, f model.HistoryFilter, gen int64) {
	list, err := s.api.History(ctx, deviceID, f)
	if err != nil {
		s.recordGenErr(deviceID, gen, "fetch history", err)
		return
	}
	// Re-sort defensively; consumers assume newest-first.
	list = model.FilterHistory(list, model.HistoryFilter{})
	s.apply(deviceID, gen, func() { s.history = list })
}

func (s *Store) fetchForecast(ctx context.Context, deviceID string, gen int64) {
	fc, err := s.api.Forecast(ctx, deviceID)
	if err != nil {
		s.recordGenErr(deviceID, gen, "fetch forecast", err)
		return
	}
	s.apply(deviceID, gen, func() { s.forecast = fc })
}

func (s *Store) fetchRecommendations(ctx context.Context, deviceID string, gen int64) {
	list, err := s.api.Recommendations(ctx, deviceID)
	if err != nil {
		s.recordGenErr(deviceID, gen, "fetch recommendations", err)
		return
	}
	s.apply(deviceID, gen, func() { s.recs = list })
}

// UpdateSensorData applies a live sensor push locally. Pushes for a device
// other than the one currently loaded are ignored; percent-full is recomputed
// from the new volume against the existing capacity.
func (s *Store) UpdateSensorData(u model.SensorUpdate) {
	s.mu.Lock()
	if s.status == nil || s.status.DeviceID != u.DeviceID {
		s.mu.Unlock()
		return
	}
	s.status.WaterVolumeL = u.WaterVolumeL
	s.status.HumidityPercent = u.HumidityPercent
	s.status.TemperatureC = u.TemperatureC
	s.status.LastUpdate = u.Timestamp
	s.status.RecomputePercentFull()
	s.mu.Unlock()
	s.notify()
}

// CreateSchedule is a write-path action: the local collection changes only
// after the API confirms, and failures are recorded AND returned so the
// initiating UI flow can react inline.
func (s *Store) CreateSchedule(ctx context.Context, sch model.Schedule) (*model.Schedule, error) {
	created, err := s.api.CreateSchedule(ctx, sch)
	if err != nil {
		s.recordErr("create schedule", err)
		return nil, err
	}
	s.mu.Lock()
	s.schedules = append(s.schedules, *created)
	s.mu.Unlock()
	s.notify()
	return created, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, id string, sch model.Schedule) (*model.Schedule, error) {
	updated, err := s.api.UpdateSchedule(ctx, id, sch)
	if err != nil {
		s.recordErr("update schedule", err)
		return nil, err
	}
	s.mu.Lock()
	for i := range s.schedules {
		if s.schedules[i].ID == id {
			s.schedules[i] = *updated
		}
	}
	s.mu.Unlock()
	s.notify()
	return updated, nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.api.DeleteSchedule(ctx, id); err != nil {
		s.recordErr("delete schedule", err)
		return err
	}
	s.mu.Lock()
	out := s.schedules[:0]
	for _, sch := range s.schedules {
		if sch.ID != id {
			out = append(out, sch)
		}
	}
	s.schedules = out
	s.mu.Unlock()
	s.notify()
	return nil
}

// AcknowledgeAlert flips the matching alert in place on success. The flag
// never reverts locally; re-acknowledging is a no-op.
func (s *Store) AcknowledgeAlert(ctx context.Context, id string) error {
	if err := s.api.AcknowledgeAlert(ctx, id); err != nil {
		s.recordErr("acknowledge alert", err)
		return err
	}
	s.mu.Lock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Acknowledged = true
		}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Subscribe emits a signal (coalesced) when the store changes.
func (s *Store) Subscribe(ctx context.Context) <-chan struct{} {
	id := s.subID.Add(1)
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	s.subs[id] = ch
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, id)
		close(ch)
		s.subMu.Unlock()
	}()

	return ch
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// drop (coalesce)
		}
	}
}
