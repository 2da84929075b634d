package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// CrossfadeFrames blends an outgoing frame with an incoming frame at the given
// progress (0.0 = all outgoing, 1.0 = all incoming). Uses smoothstep curve.
// Both frames must have the same length. Returns the blended frame.
func CrossfadeFrames(outgoing, incoming []int16, progress float64) []int16 {
	gain := Smoothstep(progress)
	result := make([]int16, len(outgoing))

	for i := range outgoing {
		out := float64(outgoing[i]) * (1 - gain)
		in := float64(incoming[i]) * gain
		mixed := out + in

		// Clip to int16 range
		if mixed > 32767 {
			mixed = 32767
		} else if mixed < -32768 {
			mixed = -32768
		}
		result[i] = int16(mixed)
	}

	return result
}

// MaxOverlap is the longest linear crossfade between rendered sections.
const MaxOverlap = 4096

// OverlapLength is min(MaxOverlap, prev, next).
func OverlapLength(prev, next int) int {
	return min(MaxOverlap, prev, next)
}

// linearWeight returns the fade-in weight at index i of an n-sample
// overlap. Fade-out is 1 minus this, so the pair always sums to one.
func linearWeight(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

// BlendLinear crossfades the first len(tail) samples of head into tail in
// place: tail fades out linearly while head fades in.
func BlendLinear(tail, head []float64) {
	n := len(tail)
	for i := 0; i < n; i++ {
		w := linearWeight(i, n)
		tail[i] = tail[i]*(1-w) + head[i]*w
	}
}

// Crossfade joins a and b, overlapping the last n samples of a with the
// first n of b. The result has len(a)+len(b)-n samples. When n is not
// positive or either side is shorter than n the two are concatenated.
func Crossfade(a, b []float64, n int) []float64 {
	if n <= 0 || len(a) < n || len(b) < n {
		out := make([]float64, 0, len(a)+len(b))
		return append(append(out, a...), b...)
	}
	out := make([]float64, 0, len(a)+len(b)-n)
	out = append(out, a...)
	BlendLinear(out[len(a)-n:], b[:n])
	return append(out, b[n:]...)
}
