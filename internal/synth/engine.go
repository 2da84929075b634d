package synth

import (
	"math/rand/v2"
	"strconv"
	"time"

	apperr "github.com/satindergrewal/ambisynth/internal/errors"
)

// DefaultMaxSeconds caps a single render when the caller sets no limit.
const DefaultMaxSeconds = 3 * 60 * 60

// Track is a finished render.
type Track struct {
	Samples     []float64 // mono, [-1, 1]
	SampleRate  int
	Request     Request
	Profile     Profile
	Scale       Scale
	Phases      []Phase
	WorkSamples int
}

// Duration of the whole buffer, silence tail included.
func (t *Track) Duration() time.Duration {
	return time.Duration(float64(len(t.Samples)) / float64(t.SampleRate) * float64(time.Second))
}

// PCM returns the 16-bit form of the buffer.
func (t *Track) PCM() []int16 {
	return Quantize(t.Samples)
}

// Engine renders sessions. An Engine owns its rng and is not safe for
// concurrent use; give each worker its own.
type Engine struct {
	rng        *rand.Rand
	maxSamples int
}

// NewEngine returns an Engine drawing from rng. A nil rng is replaced with
// an unseeded one; a non-positive maxSeconds uses DefaultMaxSeconds.
func NewEngine(rng *rand.Rand, maxSeconds float64) *Engine {
	if rng == nil {
		rng = NewRand()
	}
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxSeconds
	}
	return &Engine{rng: rng, maxSamples: samples(maxSeconds)}
}

// Render synthesizes req into a mastered buffer. Invalid requests fail
// before any work is done; requests longer than the engine limit fail with
// CodeResourceExhausted.
func (e *Engine) Render(req Request) (*Track, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	total := req.TotalSamples()
	if total > e.maxSamples {
		return nil, apperr.Newf(apperr.CodeResourceExhausted,
			"render of %d samples exceeds limit of %d", total, e.maxSamples).
			WithMetadata("duration", strconv.FormatFloat(req.DurationSeconds, 'f', -1, 64))
	}
	buf, err := allocate(total)
	if err != nil {
		return nil, err
	}

	prof := Resolve(req.Mode, req.TimeOfDay, e.rng)
	scale := SelectScale(req.Mode, e.rng)

	// Everything past work stays zero: that is the break silence.
	work := min(samples(req.WorkSeconds()), total)
	phases := Compose(buf[:work], prof, req.Mode, scale, e.rng)
	ApplyFades(buf)

	return &Track{
		Samples:     buf,
		SampleRate:  SampleRate,
		Request:     req,
		Profile:     prof,
		Scale:       scale,
		Phases:      phases,
		WorkSamples: work,
	}, nil
}

func allocate(n int) (buf []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.Newf(apperr.CodeResourceExhausted, "allocate %d samples: %v", n, r)
		}
	}()
	return make([]float64, n), nil
}
