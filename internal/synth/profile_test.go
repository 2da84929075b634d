package synth

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

// --- Resolve ---

func TestResolveBounds(t *testing.T) {
	rng := testRand()
	for _, mode := range Modes {
		for _, tod := range TimesOfDay {
			p := Resolve(mode, tod, rng)
			base := profileTable[mode]

			for _, l := range p.levels() {
				assert.GreaterOrEqual(t, *l, 0.0, "%s/%s", mode, tod)
				assert.LessOrEqual(t, *l, 1.2, "%s/%s", mode, tod)
			}
			assert.GreaterOrEqual(t, p.Tempo, 40.0, "%s/%s tempo", mode, tod)
			assert.LessOrEqual(t, p.Tempo, 120.0, "%s/%s tempo", mode, tod)
			assert.GreaterOrEqual(t, p.StructureChangeInterval, base.intervalMin)
			assert.LessOrEqual(t, p.StructureChangeInterval, base.intervalMax)
			assert.Greater(t, p.BaseFrequency, 0.0)
		}
	}
}

func TestResolveUnknownModeFallsBackToFocus(t *testing.T) {
	got := Resolve("disco", Day, testRand())
	want := Resolve(ModeFocus, Day, testRand())
	assert.Equal(t, want, got)
}

func TestResolveNightTransform(t *testing.T) {
	day := Resolve(ModeFocus, Day, testRand())
	night := Resolve(ModeFocus, Night, testRand())

	assert.InDelta(t, day.Drone*0.85, night.Drone, 1e-12)
	assert.InDelta(t, day.Tempo*0.8, night.Tempo, 1e-12)
	assert.InDelta(t, day.KeyShift-1, night.KeyShift, 1e-12)
	assert.InDelta(t, 110*0.944, night.BaseFrequency, 1e-9)
}

func TestResolveNightTempoFloor(t *testing.T) {
	p := Resolve(ModeSleep, Night, testRand())
	assert.Equal(t, 40.0, p.Tempo)
	assert.InDelta(t, 0.8, p.TimeOfDayFactor, 1e-12)
	assert.InDelta(t, 55*0.944, p.BaseFrequency, 1e-9)
}

func TestResolveMorningTransform(t *testing.T) {
	p := Resolve(ModeEnergy, Morning, testRand())
	assert.InDelta(t, 90*1.15, p.Tempo, 1e-9)
	assert.InDelta(t, 3.0, p.KeyShift, 1e-12)
	assert.InDelta(t, 0.08*1.1, p.Drone, 1e-12)
	assert.InDelta(t, 1.2, p.TimeOfDayFactor, 1e-12)
	assert.Equal(t, VoicePiano, p.MelodyVoice)
}

func TestResolveEveningIsPassThrough(t *testing.T) {
	p := Resolve(ModeCreative, Evening, testRand())
	assert.Equal(t, 75.0, p.Tempo)
	assert.Equal(t, 1.0, p.KeyShift)
	assert.Equal(t, 110.0, p.BaseFrequency)
	assert.Equal(t, VoicePluck, p.MelodyVoice)
}

// --- Request ---

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := ParseMode("disco")
	require.Error(t, err)
	_, err = ParseTimeOfDay("noon")
	require.Error(t, err)

	m, err := ParseMode("deep")
	require.NoError(t, err)
	assert.Equal(t, ModeDeep, m)
}

func TestRequestValidate(t *testing.T) {
	ok := Request{Mode: ModeCalm, DurationSeconds: 60, TimeOfDay: Evening}
	require.NoError(t, ok.Validate())

	for _, bad := range []Request{
		{Mode: "disco", DurationSeconds: 60, TimeOfDay: Day},
		{Mode: ModeCalm, DurationSeconds: 60, TimeOfDay: "noon"},
		{Mode: ModeCalm, DurationSeconds: 0, TimeOfDay: Day},
		{Mode: ModeCalm, DurationSeconds: -5, TimeOfDay: Day},
	} {
		assert.Error(t, bad.Validate(), "%+v", bad)
	}
}

func TestWorkSeconds(t *testing.T) {
	r := Request{Mode: ModeFocus, DurationSeconds: 600, TimeOfDay: Day}
	assert.Equal(t, 600.0, r.WorkSeconds())
	r.IncludeBreaks = true
	assert.InDelta(t, 498.0, r.WorkSeconds(), 1e-9)
}
