package synth

import "math"

// Layer envelopes only set attack and release; decay and sustain take these
// values.
const (
	defaultDecay   = 0.3
	defaultSustain = 0.2
)

// layerEnvelope is an ADSR with the default decay and sustain.
func layerEnvelope(attack, release float64) ADSR {
	return ADSR{Attack: attack, Decay: defaultDecay, Sustain: defaultSustain, Release: release}
}

// Envelope returns a gain curve of exactly length samples. When the attack,
// decay and release segments do not fit, it falls back to a Hann window over
// the whole length.
func Envelope(length int, env ADSR) []float64 {
	if length <= 0 {
		return []float64{}
	}

	a := samples(env.Attack)
	d := samples(env.Decay)
	r := samples(env.Release)
	sustain := length - a - d - r
	if sustain < 0 {
		return Hann(length)
	}

	curve := make([]float64, 0, length+3)
	curve = appendRamp(curve, 0, 1, max(1, a))
	curve = appendRamp(curve, 1, env.Sustain, max(1, d))
	for i := 0; i < sustain; i++ {
		curve = append(curve, env.Sustain)
	}
	curve = appendRamp(curve, env.Sustain, 0, max(1, r))

	if len(curve) > length {
		return curve[:length]
	}
	for len(curve) < length {
		curve = append(curve, 0)
	}
	return curve
}

// appendRamp appends n samples interpolated from start to stop inclusive.
func appendRamp(dst []float64, start, stop float64, n int) []float64 {
	if n == 1 {
		return append(dst, start)
	}
	step := (stop - start) / float64(n-1)
	for i := 0; i < n; i++ {
		dst = append(dst, start+step*float64(i))
	}
	return dst
}

// Hann returns a symmetric raised-cosine window of n samples.
func Hann(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{1}
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// applyGain multiplies buf by curve sample-wise.
func applyGain(buf, curve []float64) {
	for i := range buf {
		buf[i] *= curve[i]
	}
}
