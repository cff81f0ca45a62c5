package events

import (
	"testing"

	"github.com/jhump/protoreflect/dynamic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSchema(t *testing.T) {
	s, err := LoadSchema()
	require.NoError(t, err)
	require.NotNil(t, s.Envelope)
	require.NotNil(t, s.SensorObserved)
	require.NotNil(t, s.DeviceStateUpdated)
	require.NotNil(t, s.AlertRaised)
	require.NotNil(t, s.PlanGenerated)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	s, err := LoadSchema()
	require.NoError(t, err)

	env := s.NewEnvelope(SensorObserved)
	env.SetFieldByName("device_id", "AQUA001")
	so := dynamic.NewMessage(s.SensorObserved)
	so.SetFieldByName("device_id", "AQUA001")
	so.SetFieldByName("water_volume_l", 120.5)
	env.SetFieldByName("sensor_observed", so)

	b, err := Marshal(env)
	require.NoError(t, err)

	got, err := UnmarshalEnvelope(s, b)
	require.NoError(t, err)
	assert.Equal(t, SensorObserved, got.GetFieldByName("subject"))
	assert.Equal(t, "AQUA001", got.GetFieldByName("device_id"))

	payload, ok := got.GetFieldByName("sensor_observed").(*dynamic.Message)
	require.True(t, ok)
	assert.Equal(t, 120.5, payload.GetFieldByName("water_volume_l"))
}

func TestSubjectPrefix(t *testing.T) {
	assert.Equal(t, "fog.sensor.observed", Subject("fog", SensorObserved))
	assert.Equal(t, "sensor.observed", Subject("", SensorObserved))
}
