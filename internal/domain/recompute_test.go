package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Recompute(t *testing.T) {
	fixedTime := time.Date(2024, 12, 3, 16, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	defer SetClock(nil)

	e := newTestEngine()
	vegetative := string(GroupSoybeanVegetative)
	samples := []FieldSample{
		{ID: "open", StageCode: "1", SampleType: vegetative, Datos: NewMeasurement(25, 75, 20, 50)},
		{ID: "in-lot", LotID: "lote-1", StageCode: "1", SampleType: vegetative, Datos: NewMeasurement(25, 75, 20, 50)},
		{ID: "other-group", StageCode: "13", SampleType: string(GroupSoybeanLateReproductive), Datos: NewMeasurement(2, 3, 5)},
	}

	updated, n := e.Recompute(samples, "3", "soja")

	require.Len(t, updated, 3)
	assert.Equal(t, 1, n)

	assert.Equal(t, "3", updated[0].StageCode)
	assert.Equal(t, "v9-vn", updated[0].Stage.Label)
	assert.Equal(t, Percentage(17.2), updated[0].Damage)
	assert.Equal(t, fixedTime, updated[0].ProcessedAt)

	assert.Equal(t, samples[1], updated[1])
	assert.Equal(t, samples[2], updated[2])
	assert.Equal(t, "1", samples[0].StageCode, "input slice is not modified")
}

func TestEngine_Recompute_UnroutableStage(t *testing.T) {
	e := newTestEngine()
	samples := []FieldSample{
		{ID: "a", StageCode: "7", SampleType: string(GroupCornReproductive), Datos: NewMeasurement(1, 9)},
	}

	updated, n := e.Recompute(samples, "40", "maiz")

	assert.Equal(t, 0, n)
	assert.Equal(t, samples, updated)
}
