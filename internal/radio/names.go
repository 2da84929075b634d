package radio

import (
	"github.com/satindergrewal/ambisynth/internal/synth"
)

// modeAdjectives gives each mode a pool of descriptors for session names.
var modeAdjectives = map[synth.Mode][]string{
	synth.ModeFocus:    {"steady", "clear", "lucid", "patient", "even"},
	synth.ModeDeep:     {"sunken", "slow", "submerged", "inward", "low"},
	synth.ModeCreative: {"wandering", "bright", "curious", "open", "playful"},
	synth.ModeRecovery: {"mending", "soft", "easing", "restful", "warm"},
	synth.ModeSleep:    {"drowsy", "hushed", "dim", "velvet", "fading"},
	synth.ModeCalm:     {"still", "gentle", "quiet", "level", "mild"},
	synth.ModeEnergy:   {"rising", "brisk", "kinetic", "vivid", "bold"},
}

// daypartNouns place the name in the day.
var daypartNouns = map[synth.TimeOfDay]string{
	synth.Morning: "dawn",
	synth.Day:     "noon",
	synth.Evening: "dusk",
	synth.Night:   "midnight",
}

// SessionName builds a display name such as "hushed sleep at midnight".
// The adjective is picked deterministically from the session ID.
func SessionName(mode synth.Mode, tod synth.TimeOfDay, id string) string {
	if mode == "" || id == "" {
		return ""
	}

	name := string(mode) + " session"
	if adjs := modeAdjectives[mode]; len(adjs) > 0 {
		var h uint32
		for i := 0; i < len(id) && i < 8; i++ {
			h = h*31 + uint32(id[i])
		}
		name = adjs[h%uint32(len(adjs))] + " " + string(mode)
	}
	if noun, ok := daypartNouns[tod]; ok {
		name += " at " + noun
	}
	return name
}
