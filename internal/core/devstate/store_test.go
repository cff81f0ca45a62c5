package devstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fog-control/internal/model"
)

// fakeAPI is a fully in-memory API; individual calls can be overridden per
// test via the Fn fields.
type fakeAPI struct {
	devices []model.Device

	statusFn func(ctx context.Context, id string) (*model.DeviceStatus, error)
	createFn func(ctx context.Context, s model.Schedule) (*model.Schedule, error)
	deleteFn func(ctx context.Context, id string) error
	ackFn    func(ctx context.Context, id string) error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		devices: []model.Device{
			{ID: "AQUA001", Name: "Main Reservoir"},
			{ID: "AQUA002", Name: "North Field"},
		},
	}
}

func (f *fakeAPI) Devices(ctx context.Context) ([]model.Device, error) {
	return f.devices, nil
}

func (f *fakeAPI) DeviceStatus(ctx context.Context, id string) (*model.DeviceStatus, error) {
	if f.statusFn != nil {
		return f.statusFn(ctx, id)
	}
	return &model.DeviceStatus{DeviceID: id, WaterVolumeL: 120, TankCapacityL: 200, PercentFull: 60}, nil
}

func (f *fakeAPI) TimeSeries(ctx context.Context, id string, rng model.Range) (*model.TimeSeries, error) {
	return &model.TimeSeries{}, nil
}

func (f *fakeAPI) Schedules(ctx context.Context, id string) ([]model.Schedule, error) {
	return []model.Schedule{{ID: "s1", Name: "Morning"}}, nil
}

func (f *fakeAPI) CreateSchedule(ctx context.Context, s model.Schedule) (*model.Schedule, error) {
	if f.createFn != nil {
		return f.createFn(ctx, s)
	}
	s.ID = "s-new"
	return &s, nil
}

func (f *fakeAPI) UpdateSchedule(ctx context.Context, id string, s model.Schedule) (*model.Schedule, error) {
	s.ID = id
	return &s, nil
}

func (f *fakeAPI) DeleteSchedule(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeAPI) Alerts(ctx context.Context, id string) ([]model.Alert, error) {
	return []model.Alert{{ID: "a1", Type: "low_water"}}, nil
}

func (f *fakeAPI) AcknowledgeAlert(ctx context.Context, id string) error {
	if f.ackFn != nil {
		return f.ackFn(ctx, id)
	}
	return nil
}

func (f *fakeAPI) History(ctx context.Context, id string, fl model.HistoryFilter) ([]model.HistoryEvent, error) {
	return nil, nil
}

func (f *fakeAPI) Forecast(ctx context.Context, id string) (*model.Forecast, error) {
	return &model.Forecast{Forecast: model.ForecastBlock{DaysUntilRain: 5}}, nil
}

func (f *fakeAPI) Recommendations(ctx context.Context, id string) ([]model.Recommendation, error) {
	return nil, nil
}

func (f *fakeAPI) PostSensorData(ctx context.Context, u model.SensorUpdate) error {
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestSetCurrentDeviceLoadsAllSlices(t *testing.T) {
	s := NewStore(newFakeAPI(), zap.NewNop())

	s.SetCurrentDevice(context.Background(), "AQUA001")

	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Status != nil && snap.TimeSeries != nil &&
			len(snap.Schedules) == 1 && len(snap.Alerts) == 1 && snap.Forecast != nil
	})
	snap := s.Snapshot()
	assert.Equal(t, "AQUA001", snap.CurrentDeviceID)
	assert.Equal(t, "AQUA001", snap.Status.DeviceID)
}

func TestDeviceSwitchDiscardsPreviousData(t *testing.T) {
	api := newFakeAPI()
	block := make(chan struct{})
	api.statusFn = func(ctx context.Context, id string) (*model.DeviceStatus, error) {
		if id == "AQUA002" {
			<-block
		}
		return &model.DeviceStatus{DeviceID: id, TankCapacityL: 200}, nil
	}
	s := NewStore(api, zap.NewNop())

	s.SetCurrentDevice(context.Background(), "AQUA001")
	waitFor(t, func() bool { return s.Snapshot().Status != nil })

	s.SetCurrentDevice(context.Background(), "AQUA002")
	snap := s.Snapshot()
	assert.Equal(t, "AQUA002", snap.CurrentDeviceID)
	assert.Nil(t, snap.Status)
	close(block)
}

func TestStaleStatusResponseDropped(t *testing.T) {
	api := newFakeAPI()
	slow := make(chan struct{})
	api.statusFn = func(ctx context.Context, id string) (*model.DeviceStatus, error) {
		if id == "AQUA001" {
			<-slow
		}
		return &model.DeviceStatus{DeviceID: id, TankCapacityL: 200}, nil
	}
	s := NewStore(api, zap.NewNop())

	// AQUA001's status call hangs; the user switches to AQUA002 meanwhile.
	s.SetCurrentDevice(context.Background(), "AQUA001")
	s.SetCurrentDevice(context.Background(), "AQUA002")
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Status != nil && snap.Status.DeviceID == "AQUA002"
	})

	// The slow response lands now; it belongs to a dead generation.
	close(slow)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "AQUA002", s.Snapshot().Status.DeviceID)
}

func TestFetchForOldDeviceUnderLiveGenerationDropped(t *testing.T) {
	s := NewStore(newFakeAPI(), zap.NewNop())

	s.SetCurrentDevice(context.Background(), "AQUA002")
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Status != nil && snap.Status.DeviceID == "AQUA002"
	})

	// A refresh that read the previous id but the current generation must
	// not land: the device check in apply rejects it.
	s.FetchStatus(context.Background(), "AQUA001")
	assert.Equal(t, "AQUA002", s.Snapshot().Status.DeviceID)
}

func TestFetchDevicesAutoSelectsOnlyOnce(t *testing.T) {
	s := NewStore(newFakeAPI(), zap.NewNop())

	s.FetchDevices(context.Background())
	waitFor(t, func() bool { return s.CurrentDeviceID() == "AQUA001" })

	s.SetCurrentDevice(context.Background(), "AQUA002")
	s.FetchDevices(context.Background())
	assert.Equal(t, "AQUA002", s.CurrentDeviceID())
}

func TestReadFailureKeepsPriorData(t *testing.T) {
	api := newFakeAPI()
	s := NewStore(api, zap.NewNop())

	s.SetCurrentDevice(context.Background(), "AQUA001")
	waitFor(t, func() bool { return s.Snapshot().Status != nil })

	api.statusFn = func(ctx context.Context, id string) (*model.DeviceStatus, error) {
		return nil, errors.New("backend down")
	}
	s.FetchStatus(context.Background(), "AQUA001")
	waitFor(t, func() bool { return s.LastError() == "backend down" })

	// Prior snapshot survives a failed refresh.
	assert.NotNil(t, s.Snapshot().Status)
}

func TestUpdateSensorDataIgnoresOtherDevices(t *testing.T) {
	s := NewStore(newFakeAPI(), zap.NewNop())
	s.SetCurrentDevice(context.Background(), "AQUA001")
	waitFor(t, func() bool { return s.Snapshot().Status != nil })

	before := *s.Snapshot().Status
	s.UpdateSensorData(model.SensorUpdate{DeviceID: "AQUA999", WaterVolumeL: 1})
	assert.Equal(t, before.WaterVolumeL, s.Snapshot().Status.WaterVolumeL)

	s.UpdateSensorData(model.SensorUpdate{
		DeviceID:     "AQUA001",
		WaterVolumeL: 50,
		Timestamp:    time.Now(),
	})
	snap := s.Snapshot()
	assert.Equal(t, 50.0, snap.Status.WaterVolumeL)
	assert.InDelta(t, 25, snap.Status.PercentFull, 0.001)
}

func TestCreateScheduleFailureRecordedAndReturned(t *testing.T) {
	api := newFakeAPI()
	api.createFn = func(ctx context.Context, sch model.Schedule) (*model.Schedule, error) {
		return nil, errors.New("create rejected")
	}
	s := NewStore(api, zap.NewNop())

	_, err := s.CreateSchedule(context.Background(), model.Schedule{Name: "Evening"})
	require.Error(t, err)
	assert.Equal(t, "create rejected", s.LastError())
	assert.Empty(t, s.Snapshot().Schedules)
}

func TestDeleteScheduleRemovesLocally(t *testing.T) {
	s := NewStore(newFakeAPI(), zap.NewNop())
	s.SetCurrentDevice(context.Background(), "AQUA001")
	waitFor(t, func() bool { return len(s.Snapshot().Schedules) == 1 })

	require.NoError(t, s.DeleteSchedule(context.Background(), "s1"))
	assert.Empty(t, s.Snapshot().Schedules)
}

func TestAcknowledgeAlertFlipsFlag(t *testing.T) {
	s := NewStore(newFakeAPI(), zap.NewNop())
	s.SetCurrentDevice(context.Background(), "AQUA001")
	waitFor(t, func() bool { return len(s.Snapshot().Alerts) == 1 })

	require.NoError(t, s.AcknowledgeAlert(context.Background(), "a1"))
	assert.True(t, s.Snapshot().Alerts[0].Acknowledged)

	// idempotent
	require.NoError(t, s.AcknowledgeAlert(context.Background(), "a1"))
	assert.True(t, s.Snapshot().Alerts[0].Acknowledged)
}

func TestSubscribeCoalesces(t *testing.T) {
	s := NewStore(newFakeAPI(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.SetCurrentDevice(context.Background(), "AQUA001")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after state change")
	}
}
