package synth

import "math"

// Waveform selects the base shape of an oscillator.
type Waveform string

const (
	Sine     Waveform = "sine"
	Sawtooth Waveform = "saw"
	Square   Waveform = "square"
	Triangle Waveform = "triangle"
)

// peakLevel is the normalization target for generated waves.
const peakLevel = 0.9

// GenerateWave renders round(SampleRate*duration) samples of a waveform at
// freq. harmonics[i] is the gain of partial i+2, added as a sine. The result
// is peak-normalized to 0.9 unless silent. Unknown waveforms render as sine.
func GenerateWave(freq, duration float64, wf Waveform, harmonics []float64) []float64 {
	n := samples(duration)
	if n == 0 {
		return []float64{}
	}

	wave := make([]float64, n)
	for i := range wave {
		t := float64(i) / SampleRate
		wave[i] = baseSample(wf, freq, t)
	}

	for h, gain := range harmonics {
		if gain <= 0 {
			continue
		}
		w := 2 * math.Pi * freq * float64(h+2)
		for i := range wave {
			wave[i] += gain * math.Sin(w*float64(i)/SampleRate)
		}
	}

	normalize(wave, peakLevel)
	return wave
}

func baseSample(wf Waveform, freq, t float64) float64 {
	switch wf {
	case Sawtooth:
		x := t * freq
		return 2 * (x - math.Floor(0.5+x))
	case Square:
		s := math.Sin(2 * math.Pi * freq * t)
		switch {
		case s > 0:
			return 1
		case s < 0:
			return -1
		}
		return 0
	case Triangle:
		x := t * freq
		return 2*math.Abs(2*(x-math.Floor(x+0.5))) - 1
	default:
		return math.Sin(2 * math.Pi * freq * t)
	}
}

// peak returns the largest absolute sample.
func peak(buf []float64) float64 {
	var p float64
	for _, v := range buf {
		if a := math.Abs(v); a > p {
			p = a
		}
	}
	return p
}

// normalize scales buf in place so its peak equals level. Silent buffers are
// left untouched.
func normalize(buf []float64, level float64) {
	p := peak(buf)
	if p == 0 {
		return
	}
	g := level / p
	for i := range buf {
		buf[i] *= g
	}
}

// fit resizes buf to n samples, repeating it cyclically when it is short.
func fit(buf []float64, n int) []float64 {
	if len(buf) == n {
		return buf
	}
	out := make([]float64, n)
	if len(buf) == 0 {
		return out
	}
	for i := 0; i < n; i += len(buf) {
		copy(out[i:], buf)
	}
	return out
}
