package synth

import (
	"math"
	"math/rand/v2"
)

// Nature is a procedural environmental texture.
type Nature string

const (
	NatureNone   Nature = ""
	NatureRain   Nature = "rain"
	NatureForest Nature = "forest"
)

// NatureFor picks the nature texture for a mode, or NatureNone when the
// profile has no nature layer.
func NatureFor(mode Mode, p Profile) Nature {
	if p.Nature <= 0 {
		return NatureNone
	}
	if mode == ModeSleep || mode == ModeRecovery {
		return NatureRain
	}
	return NatureForest
}

const coloredNoiseEpsilon = 1e-6

// Rain texture constants.
const (
	rainDropsPerSecond = 8
	rainDropSamples    = 100
	rainDropGain       = 0.05
	rainHissGain       = 0.02
)

// Forest texture constants.
const (
	forestChirpsPerSecond = 2
	forestMinFreq         = 2000.0
	forestMaxFreq         = 5000.0
	forestMinChirp        = 0.1
	forestMaxChirp        = 0.3
	forestChirpGain       = 0.03
)

// MixColoredNoise adds a low-pass tilted noise bed (running sum of white
// noise, peak-normalized) to dst at gain. The walk is generated twice from
// one derived seed so no second full-length buffer is needed.
func MixColoredNoise(dst []float64, gain float64, rng *rand.Rand) {
	if len(dst) == 0 {
		return
	}
	s1, s2 := rng.Uint64(), rng.Uint64()

	walk := rand.New(rand.NewPCG(s1, s2))
	var acc, p float64
	for range dst {
		acc += walk.NormFloat64()
		if a := math.Abs(acc); a > p {
			p = a
		}
	}

	scale := gain / (p + coloredNoiseEpsilon)
	walk = rand.New(rand.NewPCG(s1, s2))
	acc = 0
	for i := range dst {
		acc += walk.NormFloat64()
		dst[i] += acc * scale
	}
}

// MixRain scatters short exponential noise bursts over dst and lays a quiet
// colored hiss underneath.
func MixRain(dst []float64, gain float64, rng *rand.Rand) {
	n := len(dst)
	if n == 0 {
		return
	}
	duration := float64(n) / SampleRate
	drops := int(rainDropsPerSecond * duration)
	for d := 0; d < drops; d++ {
		idx := rng.IntN(n)
		if idx+rainDropSamples >= n {
			continue
		}
		for j := 0; j < rainDropSamples; j++ {
			dst[idx+j] += rng.ExpFloat64() * rainDropGain * gain
		}
	}
	MixColoredNoise(dst, rainHissGain*gain, rng)
}

// MixForest scatters Hann-windowed high sine chirps over dst.
func MixForest(dst []float64, gain float64, rng *rand.Rand) {
	n := len(dst)
	duration := float64(n) / SampleRate
	latest := duration - forestMaxChirp
	if n == 0 || latest <= 0 {
		return
	}
	chirps := int(forestChirpsPerSecond * duration)
	for c := 0; c < chirps; c++ {
		freq := forestMinFreq + rng.Float64()*(forestMaxFreq-forestMinFreq)
		start := rng.Float64() * latest
		length := forestMinChirp + rng.Float64()*(forestMaxChirp-forestMinChirp)

		idx := samples(start)
		m := samples(length)
		if idx+m >= n {
			continue
		}
		win := Hann(m)
		w := 2 * math.Pi * freq
		for i := 0; i < m; i++ {
			t := float64(i) / SampleRate
			dst[idx+i] += math.Sin(w*t) * win[i] * forestChirpGain * gain
		}
	}
}

// MixNature adds the texture kind to dst at gain.
func MixNature(dst []float64, kind Nature, gain float64, rng *rand.Rand) {
	switch kind {
	case NatureRain:
		MixRain(dst, gain, rng)
	case NatureForest:
		MixForest(dst, gain, rng)
	}
}
