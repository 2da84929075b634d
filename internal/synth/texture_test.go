package synth

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satindergrewal/ambisynth/internal/analysis"
)

func TestNatureFor(t *testing.T) {
	rng := testRand()
	tests := []struct {
		mode Mode
		want Nature
	}{
		{ModeSleep, NatureRain},
		{ModeRecovery, NatureRain},
		{ModeCalm, NatureForest},
		{ModeDeep, NatureForest},
		{ModeFocus, NatureNone},
		{ModeEnergy, NatureNone},
		{ModeCreative, NatureNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NatureFor(tt.mode, Resolve(tt.mode, Day, rng)), tt.mode)
	}
}

func TestColoredNoiseIsLowTilted(t *testing.T) {
	bed := make([]float64, 10*SampleRate)
	MixColoredNoise(bed, 0.5, testRand())
	assert.InDelta(t, 0.5, peak(bed), 1e-3)

	rng := rand.New(rand.NewPCG(9, 9))
	white := make([]float64, 10*SampleRate)
	for i := range white {
		white[i] = rng.NormFloat64()
	}

	bedCentroid := analysis.Analyze(bed, SampleRate).SpectralCentroid
	whiteCentroid := analysis.Analyze(white, SampleRate).SpectralCentroid
	assert.Greater(t, whiteCentroid, 4000.0)
	assert.Less(t, bedCentroid, whiteCentroid/3)
}

func TestColoredNoiseDeterministic(t *testing.T) {
	a := make([]float64, SampleRate)
	b := make([]float64, SampleRate)
	MixColoredNoise(a, 0.1, testRand())
	MixColoredNoise(b, 0.1, testRand())
	assert.Equal(t, a, b)

	MixColoredNoise(nil, 0.1, testRand())
}

func TestMixRain(t *testing.T) {
	buf := make([]float64, 2*SampleRate)
	MixRain(buf, 0.03, testRand())
	p := peak(buf)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 0.1)
}

func TestMixForest(t *testing.T) {
	short := make([]float64, samples(0.2))
	MixForest(short, 1, testRand())
	assert.Equal(t, 0.0, peak(short))

	buf := make([]float64, 5*SampleRate)
	MixForest(buf, 1, testRand())
	p := peak(buf)
	assert.Greater(t, p, 0.0)
	assert.LessOrEqual(t, p, 10*forestChirpGain)
}
