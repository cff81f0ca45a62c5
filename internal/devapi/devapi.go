// Package devapi defines the device API contract consumed by the state store.
// Two implementations exist: the mock API (development stand-in) and the live
// upstream client. All failures are ordinary error values; nothing past this
// boundary panics on transport trouble.
package devapi

import (
	"context"
	"errors"

	"fog-control/internal/model"
)

// ErrNotFound marks a domain "not found" (unknown device, no active plan).
var ErrNotFound = errors.New("not found")

type API interface {
	Devices(ctx context.Context) ([]model.Device, error)
	DeviceStatus(ctx context.Context, deviceID string) (*model.DeviceStatus, error)
	TimeSeries(ctx context.Context, deviceID string, rng model.Range) (*model.TimeSeries, error)

	Schedules(ctx context.Context, deviceID string) ([]model.Schedule, error)
	CreateSchedule(ctx context.Context, s model.Schedule) (*model.Schedule, error)
	UpdateSchedule(ctx context.Context, id string, s model.Schedule) (*model.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error

	Alerts(ctx context.Context, deviceID string) ([]model.Alert, error)
	AcknowledgeAlert(ctx context.Context, id string) error

	History(ctx context.Context, deviceID string, f model.HistoryFilter) ([]model.HistoryEvent, error)
	Forecast(ctx context.Context, deviceID string) (*model.Forecast, error)
	Recommendations(ctx context.Context, deviceID string) ([]model.Recommendation, error)

	PostSensorData(ctx context.Context, u model.SensorUpdate) error
}
