package mqttingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTelemetry(t *testing.T) {
	tel, err := ParseTelemetry([]byte(`{"device_id":"AQUA001","distance_cm":40,"humidity":75,"temperature":19.5}`))
	require.NoError(t, err)
	assert.Equal(t, "AQUA001", tel.DeviceID)
	assert.Equal(t, 40.0, *tel.DistanceCM)
	assert.Equal(t, 75.0, *tel.Humidity)
}

func TestParseTelemetryRejectsMissingFields(t *testing.T) {
	_, err := ParseTelemetry([]byte(`{"distance_cm":40}`))
	assert.ErrorContains(t, err, "device_id")

	_, err = ParseTelemetry([]byte(`{"device_id":"AQUA001"}`))
	assert.ErrorContains(t, err, "distance_cm")

	_, err = ParseTelemetry([]byte(`not json`))
	assert.ErrorContains(t, err, "decode")
}

func TestToUpdateTankMath(t *testing.T) {
	now := time.Now().UTC()
	dist := 40.0
	tel := Telemetry{DeviceID: "AQUA001", DistanceCM: &dist}

	// 100 cm tank, sensor reads 40 cm of air: 60 cm of water -> 120 L of 200.
	u := ToUpdate(tel, 100, 200, now)
	assert.Equal(t, "AQUA001", u.DeviceID)
	assert.InDelta(t, 120, u.WaterVolumeL, 0.001)
	assert.Equal(t, now, u.Timestamp)
}

func TestToUpdateClampsToTank(t *testing.T) {
	over := 150.0
	u := ToUpdate(Telemetry{DeviceID: "d", DistanceCM: &over}, 100, 200, time.Now())
	assert.Equal(t, 0.0, u.WaterVolumeL)

	neg := -10.0
	u = ToUpdate(Telemetry{DeviceID: "d", DistanceCM: &neg}, 100, 200, time.Now())
	assert.Equal(t, 200.0, u.WaterVolumeL)
}

func TestToUpdateOptionalReadings(t *testing.T) {
	dist, hum, temp := 50.0, 70.0, 18.0
	tel := Telemetry{DeviceID: "d", DistanceCM: &dist, Humidity: &hum, Temperature: &temp}

	u := ToUpdate(tel, 100, 200, time.Now())
	assert.Equal(t, 70.0, u.HumidityPercent)
	assert.Equal(t, 18.0, u.TemperatureC)

	u = ToUpdate(Telemetry{DeviceID: "d", DistanceCM: &dist}, 100, 200, time.Now())
	assert.Zero(t, u.HumidityPercent)
	assert.Zero(t, u.TemperatureC)
}

func TestToUpdateZeroHeightProducesNoVolume(t *testing.T) {
	dist := 10.0
	u := ToUpdate(Telemetry{DeviceID: "d", DistanceCM: &dist}, 0, 200, time.Now())
	assert.Equal(t, 0.0, u.WaterVolumeL)
}
