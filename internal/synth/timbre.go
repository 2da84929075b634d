package synth

import (
	"math"
	"math/rand/v2"
)

// Voice is a melody instrument.
type Voice string

const (
	VoiceSine  Voice = "sine"
	VoicePiano Voice = "piano"
	VoicePluck Voice = "pluck"
	VoicePad   Voice = "pad"
)

var sineVoiceHarmonics = []float64{0.2, 0.1}

// Piano model constants.
const (
	pianoModRatio   = 2.5
	pianoModIndex   = 3.0
	hammerSeconds   = 0.02
	hammerGain      = 0.5
	hammerDecaySpan = 10.0
)

var pianoEnvelope = ADSR{Attack: 0.005, Decay: 0.4, Sustain: 0.15, Release: 1.2}

const (
	pluckDecay  = 3.0
	padLFORate  = 0.3
	padLFODepth = 0.2
)

// RenderNote renders one note of duration seconds with voice. env shapes
// every voice except piano, which carries its own envelope. Unknown voices
// render as sine.
func RenderNote(voice Voice, freq, duration float64, env ADSR, rng *rand.Rand) []float64 {
	switch voice {
	case VoicePiano:
		return pianoNote(freq, duration, rng)
	case VoicePluck:
		note := pluckNote(freq, duration)
		applyGain(note, Envelope(len(note), env))
		return note
	case VoicePad:
		note := padNote(freq, duration)
		applyGain(note, Envelope(len(note), env))
		return note
	default:
		note := GenerateWave(freq, duration, Sine, sineVoiceHarmonics)
		applyGain(note, Envelope(len(note), env))
		return note
	}
}

// pianoNote is a two-operator FM tone with a short noise burst for the
// hammer strike.
func pianoNote(freq, duration float64, rng *rand.Rand) []float64 {
	n := samples(duration)
	wave := make([]float64, n)
	if n == 0 {
		return wave
	}

	wc := 2 * math.Pi * freq
	wm := 2 * math.Pi * freq * pianoModRatio
	for i := range wave {
		t := float64(i) / SampleRate
		wave[i] = math.Sin(wc*t + pianoModIndex*math.Sin(wm*t))
	}

	if burst := samples(hammerSeconds); burst < n {
		for i := 0; i < burst; i++ {
			decay := math.Exp(-hammerDecaySpan * float64(i) / float64(max(1, burst-1)))
			wave[i] += rng.NormFloat64() * hammerGain * decay
		}
	}

	applyGain(wave, Envelope(n, pianoEnvelope))
	normalize(wave, peakLevel)
	return wave
}

func pluckNote(freq, duration float64) []float64 {
	wave := make([]float64, samples(duration))
	w := 2 * math.Pi * freq
	for i := range wave {
		t := float64(i) / SampleRate
		wave[i] = math.Sin(w*t) * math.Exp(-pluckDecay*t)
	}
	return wave
}

func padNote(freq, duration float64) []float64 {
	wave := make([]float64, samples(duration))
	w := 2 * math.Pi * freq
	lfo := 2 * math.Pi * padLFORate
	for i := range wave {
		t := float64(i) / SampleRate
		wave[i] = math.Sin(w*t) * (1 + padLFODepth*math.Sin(lfo*t))
	}
	return wave
}

// mixAt adds src into dst starting at offset, dropping whatever would run
// past the end of dst.
func mixAt(dst, src []float64, offset int, gain float64) {
	if offset < 0 || offset >= len(dst) {
		return
	}
	end := min(len(dst), offset+len(src))
	for i := offset; i < end; i++ {
		dst[i] += src[i-offset] * gain
	}
}
