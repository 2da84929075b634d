// Package analysis measures rendered sessions: level, spectral brightness
// and how much silence sits at the end of the buffer.
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// FrameSize is the FFT length used for spectral measurements.
	FrameSize = 4096
	// MaxFrames bounds how many frames are sampled from a long buffer.
	MaxFrames = 64
	// SilenceThreshold is one 16-bit LSB; quieter samples count as silence.
	SilenceThreshold = 1.0 / 32768
)

// Report summarizes a mono buffer.
type Report struct {
	Peak             float64 `json:"peak"`
	RMS              float64 `json:"rms"`
	SpectralCentroid float64 `json:"spectral_centroid"` // Hz
	TrailingSilence  float64 `json:"trailing_silence"`  // seconds
	Frames           int     `json:"frames"`
}

func (r Report) String() string {
	return fmt.Sprintf("peak=%.3f rms=%.4f centroid=%.0fHz tail=%.1fs",
		r.Peak, r.RMS, r.SpectralCentroid, r.TrailingSilence)
}

// Analyze measures samples recorded at rate Hz.
func Analyze(samples []float64, rate int) Report {
	var r Report
	if len(samples) == 0 || rate <= 0 {
		return r
	}

	var sum float64
	for _, v := range samples {
		a := math.Abs(v)
		if a > r.Peak {
			r.Peak = a
		}
		sum += v * v
	}
	r.RMS = math.Sqrt(sum / float64(len(samples)))

	tail := 0
	for i := len(samples) - 1; i >= 0 && math.Abs(samples[i]) < SilenceThreshold; i-- {
		tail++
	}
	r.TrailingSilence = float64(tail) / float64(rate)

	r.SpectralCentroid, r.Frames = centroid(samples, rate)
	return r
}

// centroid averages the magnitude-weighted mean frequency of up to
// MaxFrames Hann-windowed frames spread evenly over samples. Silent frames
// are skipped.
func centroid(samples []float64, rate int) (float64, int) {
	frames := min(MaxFrames, max(1, len(samples)/FrameSize))
	hop := 0
	if frames > 1 {
		hop = (len(samples) - FrameSize) / (frames - 1)
	}

	win := hann(FrameSize)
	frame := make([]float64, FrameSize)
	binHz := float64(rate) / FrameSize

	var total float64
	used := 0
	for f := 0; f < frames; f++ {
		start := f * hop
		for i := range frame {
			frame[i] = 0
			if j := start + i; j < len(samples) {
				frame[i] = samples[j] * win[i]
			}
		}

		spectrum := fft.FFTReal(frame)
		var num, den float64
		for k := 1; k <= FrameSize/2; k++ {
			mag := cmplx.Abs(spectrum[k])
			num += mag * float64(k) * binHz
			den += mag
		}
		if den < 1e-12 {
			continue
		}
		total += num / den
		used++
	}
	if used == 0 {
		return 0, 0
	}
	return total / float64(used), used
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
