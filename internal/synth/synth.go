// Package synth renders long-form ambient sessions from a mode, a
// time-of-day context and a duration. Everything here is pure CPU work over
// in-memory float buffers; encoding and delivery live elsewhere.
package synth

import (
	"math"
	"math/rand/v2"

	apperr "github.com/satindergrewal/ambisynth/internal/errors"
)

// SampleRate is the fixed synthesis rate in Hz.
const SampleRate = 22050

// BreakWorkRatio is the share of a session that carries music when breaks
// are requested; the rest is silence.
const BreakWorkRatio = 0.83

// Mode is a named mood profile.
type Mode string

const (
	ModeFocus    Mode = "focus"
	ModeSleep    Mode = "sleep"
	ModeCalm     Mode = "calm"
	ModeEnergy   Mode = "energy"
	ModeDeep     Mode = "deep"
	ModeCreative Mode = "creative"
	ModeRecovery Mode = "recovery"
)

// Modes lists every supported mode in display order.
var Modes = []Mode{ModeFocus, ModeDeep, ModeCreative, ModeRecovery, ModeSleep, ModeCalm, ModeEnergy}

// Subdued modes use the minor catalog and get a nature texture.
func (m Mode) Subdued() bool {
	switch m {
	case ModeSleep, ModeCalm, ModeDeep, ModeRecovery:
		return true
	}
	return false
}

// TimeOfDay is the daypart a session is adapted to.
type TimeOfDay string

const (
	Morning TimeOfDay = "morning"
	Day     TimeOfDay = "day"
	Evening TimeOfDay = "evening"
	Night   TimeOfDay = "night"
)

// TimesOfDay lists every daypart in clock order.
var TimesOfDay = []TimeOfDay{Morning, Day, Evening, Night}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", apperr.Newf(apperr.CodeInvalidRequest, "unknown mode %q", s).WithMetadata("field", "mode")
}

// ParseTimeOfDay validates a daypart name.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, t := range TimesOfDay {
		if string(t) == s {
			return t, nil
		}
	}
	return "", apperr.Newf(apperr.CodeInvalidRequest, "unknown time of day %q", s).WithMetadata("field", "time_of_day")
}

// Request is the immutable input to a render.
type Request struct {
	Mode            Mode
	DurationSeconds float64
	TimeOfDay       TimeOfDay
	IncludeBreaks   bool
}

// Validate rejects requests outside the known enums or with a non-positive
// duration.
func (r Request) Validate() error {
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	if _, err := ParseTimeOfDay(string(r.TimeOfDay)); err != nil {
		return err
	}
	if !(r.DurationSeconds > 0) || math.IsInf(r.DurationSeconds, 0) {
		return apperr.Newf(apperr.CodeInvalidRequest, "duration must be positive, got %v", r.DurationSeconds).
			WithMetadata("field", "duration")
	}
	return nil
}

// WorkSeconds is the part of the session that carries music.
func (r Request) WorkSeconds() float64 {
	if r.IncludeBreaks {
		return r.DurationSeconds * BreakWorkRatio
	}
	return r.DurationSeconds
}

// TotalSamples is the length of the finished buffer for r.
func (r Request) TotalSamples() int {
	return samples(r.DurationSeconds)
}

// samples converts seconds to a sample count at SampleRate.
func samples(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * SampleRate))
}

// NewRand returns an unseeded generator for production renders.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
