package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 12, 0, 0, 0, time.UTC)
}

func sampleHistory() []HistoryEvent {
	return []HistoryEvent{
		{ID: "e1", Type: "irrigation", Timestamp: day(1)},
		{ID: "e2", Type: "refill", Timestamp: day(3)},
		{ID: "e3", Type: "irrigation", Timestamp: day(5)},
	}
}

func TestFilterHistoryByType(t *testing.T) {
	out := FilterHistory(sampleHistory(), HistoryFilter{Type: "irrigation"})
	require.Len(t, out, 2)
	for _, e := range out {
		assert.Equal(t, "irrigation", e.Type)
	}
}

func TestFilterHistoryConjunction(t *testing.T) {
	f := HistoryFilter{Type: "irrigation", Start: day(2), End: day(6)}
	out := FilterHistory(sampleHistory(), f)
	require.Len(t, out, 1)
	assert.Equal(t, "e3", out[0].ID)
}

func TestFilterHistoryBoundsInclusive(t *testing.T) {
	f := HistoryFilter{Start: day(1), End: day(5)}
	out := FilterHistory(sampleHistory(), f)
	assert.Len(t, out, 3)

	f = HistoryFilter{Start: day(1).Add(time.Second), End: day(5).Add(-time.Second)}
	out = FilterHistory(sampleHistory(), f)
	require.Len(t, out, 1)
	assert.Equal(t, "e2", out[0].ID)
}

func TestFilterHistorySortsNewestFirst(t *testing.T) {
	out := FilterHistory(sampleHistory(), HistoryFilter{})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"e3", "e2", "e1"}, []string{out[0].ID, out[1].ID, out[2].ID})
}

func TestRecomputePercentFull(t *testing.T) {
	st := DeviceStatus{WaterVolumeL: 50, TankCapacityL: 200, PercentFull: 99}
	st.RecomputePercentFull()
	assert.InDelta(t, 25, st.PercentFull, 0.001)

	st = DeviceStatus{WaterVolumeL: 50, TankCapacityL: 0, PercentFull: 99}
	st.RecomputePercentFull()
	assert.Equal(t, 99.0, st.PercentFull)
}
