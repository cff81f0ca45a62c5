package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTankFallback(t *testing.T) {
	s := Defaults()
	s.Tanks = []TankConfig{{DeviceID: "AQUA002", HeightCM: 150, CapacityL: 500}}

	tk := s.Tank("AQUA002")
	assert.Equal(t, 150.0, tk.HeightCM)
	assert.Equal(t, 500.0, tk.CapacityL)

	tk = s.Tank("AQUA001")
	assert.Equal(t, 100.0, tk.HeightCM)
	assert.Equal(t, 200.0, tk.CapacityL)
}

func TestNormalizeFillsZeroFields(t *testing.T) {
	var s Settings
	s.Normalize()

	assert.Equal(t, ":8080", s.HTTPAddr)
	assert.Equal(t, 5*time.Second, s.Poll.Interval)
	assert.Equal(t, "biyokaab/+/telemetry", s.MQTT.Topic)
	assert.Equal(t, 1883, s.MQTT.Port)
	assert.Equal(t, "fog", s.NATSPrefix)
	assert.False(t, s.MQTT.Enabled)
	assert.False(t, s.EmbeddedNATS.Enabled)
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(dir)
	require.NoError(t, err)

	cur := st.Get()
	cur.Backend.BaseURL = "http://localhost:8000/api"
	require.NoError(t, st.Update(cur))

	st2, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", st2.Get().Backend.BaseURL)
}

func TestPatchNormalizes(t *testing.T) {
	st, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Patch(func(s *Settings) {
		s.Poll.Interval = 0
		s.MQTT.Topic = ""
	}))
	assert.Equal(t, 5*time.Second, st.Get().Poll.Interval)
	assert.Equal(t, "biyokaab/+/telemetry", st.Get().MQTT.Topic)
}

func TestCorruptFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{{{"), 0o644))

	st, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, ":8080", st.Get().HTTPAddr)
}
