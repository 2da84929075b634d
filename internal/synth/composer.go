package synth

import (
	"math/rand/v2"

	"github.com/satindergrewal/ambisynth/internal/audio"
)

// Phase is one structural section of the work portion of a session.
type Phase struct {
	Start       float64 `json:"start"` // seconds
	End         float64 `json:"end"`
	StartSample int     `json:"start_sample"`
	EndSample   int     `json:"end_sample"`
	Chord       Chord   `json:"chord"`
}

// Len is the number of samples the phase owns in the work buffer.
func (p Phase) Len() int { return p.EndSample - p.StartSample }

// PlanPhases tiles [0, work) with phases of interval seconds, clipping the
// last one. A non-positive interval yields a single phase.
func PlanPhases(work, interval float64) []Phase {
	if work <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = work
	}
	var phases []Phase
	for start := 0.0; start < work; {
		end := min(start+interval, work)
		phases = append(phases, Phase{
			Start:       start,
			End:         end,
			StartSample: samples(start),
			EndSample:   samples(end),
		})
		start = end
	}
	return phases
}

// Layer harmonic recipes.
var (
	droneHarmonics   = []float64{0.1, 0.05}
	harmonyHarmonics = []float64{0.3, 0.1}
	bassHarmonics    = []float64{0.4, 0.2}
)

// Layer envelopes.
var (
	droneEnvelope   = layerEnvelope(0.5, 1.0)
	harmonyEnvelope = layerEnvelope(0.2, 0.8)
	bassEnvelope    = layerEnvelope(0.1, 0.6)
	clickEnvelope   = layerEnvelope(0.001, 0.04)
)

const (
	clickSeconds = 0.05
	clickNoise   = 0.001
)

type composer struct {
	prof Profile
	pool []float64
	rng  *rand.Rand
}

// Compose renders the work portion of a session into dst, whose length is
// the work sample count. Phases are rendered one at a time and stitched
// with a linear crossfade; the colored bed and nature texture are then laid
// over the whole buffer and the result is hard-clipped to [-1, 1].
func Compose(dst []float64, prof Profile, mode Mode, scale Scale, rng *rand.Rand) []Phase {
	c := &composer{prof: prof, pool: scale.MelodyPool(), rng: rng}

	work := float64(len(dst)) / SampleRate
	phases := PlanPhases(work, prof.StructureChangeInterval)

	pos, prevLen := 0, 0
	for i := range phases {
		ph := &phases[i]
		ph.EndSample = min(ph.EndSample, len(dst))
		ph.StartSample = min(ph.StartSample, ph.EndSample)
		n := ph.Len()
		if n == 0 {
			continue
		}
		ph.Chord = scale.RandomChord(prof.KeyMultiplier(), rng)

		lead := 0
		if pos > 0 {
			lead = audio.OverlapLength(prevLen, n)
		}
		buf := c.renderPhase(n+lead, ph.Chord)
		if lead > 0 {
			audio.BlendLinear(dst[pos-lead:pos], buf[:lead])
		}
		copy(dst[pos:pos+n], buf[lead:])
		pos += n
		prevLen = n
	}

	g := prof.TimeOfDayFactor
	MixColoredNoise(dst, prof.Noise*g, rng)
	MixNature(dst, NatureFor(mode, prof), prof.Nature, rng)
	clip(dst)
	return phases
}

// renderPhase renders the five instrument layers for an n-sample section.
func (c *composer) renderPhase(n int, chord Chord) []float64 {
	dur := float64(n) / SampleRate
	g := c.prof.TimeOfDayFactor
	out := make([]float64, n)

	drone := fit(GenerateWave(c.prof.BaseFrequency, dur, Sine, droneHarmonics), n)
	applyGain(drone, Envelope(n, droneEnvelope))
	mixAt(out, drone, 0, c.prof.Drone*g)

	harmony := make([]float64, n)
	for _, f := range chord {
		mixAt(harmony, fit(GenerateWave(f, dur, Sine, harmonyHarmonics), n), 0, 1)
	}
	applyGain(harmony, Envelope(n, harmonyEnvelope))
	mixAt(out, harmony, 0, c.prof.Harmony*g)

	c.renderMelody(out, dur, c.prof.Melody*g)

	bass := fit(GenerateWave(chord.Root()/2, dur, Sine, bassHarmonics), n)
	applyGain(bass, Envelope(n, bassEnvelope))
	mixAt(out, bass, 0, c.prof.Bass*g)

	if c.prof.Percussion > 0 {
		c.renderPercussion(out, dur, c.prof.Percussion*g)
	}
	return out
}

// renderMelody places one note per beat; notes that overrun the section are
// truncated.
func (c *composer) renderMelody(out []float64, dur, gain float64) {
	spacing := c.prof.NoteSpacing()
	count := int(dur / spacing)
	keyMult := c.prof.KeyMultiplier()
	for j := 0; j < count; j++ {
		start := float64(j) * spacing
		noteDur := min(spacing, dur-start)
		f := MelodyNote(c.pool, keyMult, c.rng)
		note := RenderNote(c.prof.MelodyVoice, f, noteDur, c.prof.MelodyEnvelope, c.rng)
		mixAt(out, note, samples(start), gain)
	}
}

// renderPercussion drops a short noise click on every beat.
func (c *composer) renderPercussion(out []float64, dur, gain float64) {
	spacing := c.prof.NoteSpacing()
	for k := 0; float64(k)*spacing < dur; k++ {
		idx := samples(float64(k) * spacing)
		if idx >= len(out) {
			break
		}
		mixAt(out, c.click(), idx, gain)
	}
}

func (c *composer) click() []float64 {
	n := samples(clickSeconds)
	buf := make([]float64, n)
	for i := 0; i < samples(clickNoise); i++ {
		buf[i] = c.rng.NormFloat64()
	}
	applyGain(buf, Envelope(n, clickEnvelope))
	return buf
}

// clip hard-limits buf to [-1, 1].
func clip(buf []float64) {
	for i, v := range buf {
		if v > 1 {
			buf[i] = 1
		} else if v < -1 {
			buf[i] = -1
		}
	}
}
