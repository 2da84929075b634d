package synth

// FadeSeconds is the length of the master fade-in and fade-out.
const FadeSeconds = 4.0

// ApplyFades ramps the first and last min(4s, len) samples of buf linearly
// from and to zero. The fades cover the literal buffer ends, including any
// silence tail.
func ApplyFades(buf []float64) {
	n := min(samples(FadeSeconds), len(buf))
	if n == 0 {
		return
	}
	tail := len(buf) - n
	for i := 0; i < n; i++ {
		w := 0.0
		if n > 1 {
			w = float64(i) / float64(n-1)
		}
		buf[i] *= w
		buf[tail+i] *= 1 - w
	}
}

// Quantize converts float samples to 16-bit PCM, clamping to [-1, 1] and
// truncating toward zero.
func Quantize(buf []float64) []int16 {
	pcm := make([]int16, len(buf))
	for i, v := range buf {
		pcm[i] = QuantizeSample(v)
	}
	return pcm
}

// QuantizeSample converts one sample.
func QuantizeSample(v float64) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
