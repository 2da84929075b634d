package synth

import "math/rand/v2"

// ADSR is an attack/decay/sustain/release contour. Attack, Decay and Release
// are seconds; Sustain is a level in [0,1].
type ADSR struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Profile is the resolved synthesis parameter set for one request.
type Profile struct {
	Drone      float64 `json:"drone"`
	Harmony    float64 `json:"harmony"`
	Melody     float64 `json:"melody"`
	Bass       float64 `json:"bass"`
	Percussion float64 `json:"percussion"`
	Noise      float64 `json:"noise"`
	Nature     float64 `json:"nature"`

	Tempo                   float64 `json:"tempo"`     // BPM
	KeyShift                float64 `json:"key_shift"` // percent
	StructureChangeInterval float64 `json:"structure_change_interval"`
	InstrumentCount         int     `json:"instrument_count"`
	TimeOfDayFactor         float64 `json:"time_of_day_factor"`
	BaseFrequency           float64 `json:"base_frequency"`

	MelodyVoice    Voice `json:"melody_voice"`
	MelodyEnvelope ADSR  `json:"melody_envelope"`
}

// levels returns pointers to every per-layer gain.
func (p *Profile) levels() []*float64 {
	return []*float64{&p.Drone, &p.Harmony, &p.Melody, &p.Bass, &p.Percussion, &p.Noise, &p.Nature}
}

// KeyMultiplier converts KeyShift into a frequency ratio.
func (p Profile) KeyMultiplier() float64 {
	return 1 + p.KeyShift/100
}

// NoteSpacing is the length of one beat in seconds.
func (p Profile) NoteSpacing() float64 {
	return 60 / p.Tempo
}

type baseProfile struct {
	drone, harmony, melody, bass, perc, noise, nature float64

	tempo       float64
	keyShift    float64
	intervalMin float64
	intervalMax float64
	instruments int
	baseFreq    float64
	voice       Voice
	envelope    ADSR

	// todFactor returns the loudness scalar for a daypart.
	todFactor func(TimeOfDay) float64
}

func constFactor(f float64) func(TimeOfDay) float64 {
	return func(TimeOfDay) float64 { return f }
}

func factorAt(tod TimeOfDay, f float64) func(TimeOfDay) float64 {
	return func(t TimeOfDay) float64 {
		if t == tod {
			return f
		}
		return 1.0
	}
}

// profileTable holds the fixed per-mode parameter records.
var profileTable = map[Mode]baseProfile{
	ModeSleep: {
		drone: 0.08, harmony: 0.04, melody: 0.02, bass: 0.03, perc: 0.01, noise: 0.01, nature: 0.03,
		tempo: 50, keyShift: -2.0, intervalMin: 90, intervalMax: 150, instruments: 2, baseFreq: 55,
		voice: VoiceSine, envelope: ADSR{0.1, 0.2, 0.5, 1.5},
		todFactor: factorAt(Night, 0.8),
	},
	ModeCalm: {
		drone: 0.10, harmony: 0.06, melody: 0.04, bass: 0.04, perc: 0.02, noise: 0.02, nature: 0.02,
		tempo: 60, keyShift: -1.0, intervalMin: 60, intervalMax: 100, instruments: 3, baseFreq: 110,
		voice: VoiceSine, envelope: ADSR{0.08, 0.15, 0.6, 1.2},
		todFactor: factorAt(Night, 0.9),
	},
	ModeEnergy: {
		drone: 0.08, harmony: 0.08, melody: 0.07, bass: 0.06, perc: 0.05, noise: 0.03, nature: 0.0,
		tempo: 90, keyShift: 2.0, intervalMin: 30, intervalMax: 60, instruments: 4, baseFreq: 110,
		voice: VoicePiano, envelope: ADSR{0.005, 0.4, 0.15, 1.2},
		todFactor: factorAt(Morning, 1.2),
	},
	ModeDeep: {
		drone: 0.12, harmony: 0.03, melody: 0.01, bass: 0.03, perc: 0.01, noise: 0.02, nature: 0.01,
		tempo: 60, keyShift: -1.5, intervalMin: 120, intervalMax: 180, instruments: 2, baseFreq: 110,
		voice: VoiceSine, envelope: ADSR{0.2, 0.3, 0.4, 2.0},
		todFactor: constFactor(1.0),
	},
	ModeCreative: {
		drone: 0.07, harmony: 0.07, melody: 0.06, bass: 0.05, perc: 0.04, noise: 0.02, nature: 0.0,
		tempo: 75, keyShift: 1.0, intervalMin: 40, intervalMax: 70, instruments: 4, baseFreq: 110,
		voice: VoicePluck, envelope: ADSR{0.01, 0.2, 0.6, 0.8},
		todFactor: constFactor(1.1),
	},
	ModeRecovery: {
		drone: 0.10, harmony: 0.04, melody: 0.02, bass: 0.02, perc: 0.01, noise: 0.02, nature: 0.04,
		tempo: 55, keyShift: -2.0, intervalMin: 100, intervalMax: 160, instruments: 2, baseFreq: 110,
		voice: VoicePad, envelope: ADSR{0.5, 0.5, 0.3, 3.0},
		todFactor: constFactor(0.9),
	},
	ModeFocus: {
		drone: 0.10, harmony: 0.06, melody: 0.05, bass: 0.05, perc: 0.03, noise: 0.025, nature: 0.0,
		tempo: 70, keyShift: 0.0, intervalMin: 60, intervalMax: 110, instruments: 3, baseFreq: 110,
		voice: VoiceSine, envelope: ADSR{0.05, 0.1, 0.7, 0.3},
		todFactor: constFactor(1.0),
	},
}

// Daypart adjustments.
const (
	nightLevelScale   = 0.85
	nightTempoScale   = 0.8
	nightMinTempo     = 40
	nightFreqScale    = 0.944
	morningLevelScale = 1.1
	morningTempoScale = 1.15
	morningMaxTempo   = 120
	morningFreqScale  = 1.059
)

// Resolve maps a mode and daypart to a Profile. Unknown modes fall back to
// focus. The structure change interval is drawn from rng.
func Resolve(mode Mode, tod TimeOfDay, rng *rand.Rand) Profile {
	base, ok := profileTable[mode]
	if !ok {
		base = profileTable[ModeFocus]
	}

	p := Profile{
		Drone:      base.drone,
		Harmony:    base.harmony,
		Melody:     base.melody,
		Bass:       base.bass,
		Percussion: base.perc,
		Noise:      base.noise,
		Nature:     base.nature,

		Tempo:                   base.tempo,
		KeyShift:                base.keyShift,
		StructureChangeInterval: base.intervalMin + rng.Float64()*(base.intervalMax-base.intervalMin),
		InstrumentCount:         base.instruments,
		TimeOfDayFactor:         base.todFactor(tod),
		BaseFrequency:           base.baseFreq,
		MelodyVoice:             base.voice,
		MelodyEnvelope:          base.envelope,
	}

	switch tod {
	case Night:
		p.BaseFrequency *= nightFreqScale
		for _, l := range p.levels() {
			*l *= nightLevelScale
		}
		p.Tempo = max(nightMinTempo, p.Tempo*nightTempoScale)
		p.KeyShift -= 1.0
	case Morning:
		p.BaseFrequency *= morningFreqScale
		for _, l := range p.levels() {
			*l *= morningLevelScale
		}
		p.Tempo = min(morningMaxTempo, p.Tempo*morningTempoScale)
		p.KeyShift += 1.0
	}

	return p
}
