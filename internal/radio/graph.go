// Package radio runs the continuous ambient station: it walks a mood graph
// over the session modes and keeps the audio pipeline fed with freshly
// rendered sessions.
package radio

import (
	"slices"

	"github.com/satindergrewal/ambisynth/internal/synth"
)

// Node is a mode in the mood graph.
type Node struct {
	Mode     synth.Mode
	Adjacent []synth.Mode
}

// MoodGraph links each mode to the modes the station may drift into.
// Edges are symmetric and automatic transitions only follow edges.
var MoodGraph = map[synth.Mode]*Node{
	synth.ModeFocus: {
		Mode:     synth.ModeFocus,
		Adjacent: []synth.Mode{synth.ModeDeep, synth.ModeCreative, synth.ModeCalm},
	},
	synth.ModeDeep: {
		Mode:     synth.ModeDeep,
		Adjacent: []synth.Mode{synth.ModeFocus, synth.ModeRecovery},
	},
	synth.ModeCreative: {
		Mode:     synth.ModeCreative,
		Adjacent: []synth.Mode{synth.ModeFocus, synth.ModeEnergy},
	},
	synth.ModeEnergy: {
		Mode:     synth.ModeEnergy,
		Adjacent: []synth.Mode{synth.ModeCreative, synth.ModeRecovery},
	},
	synth.ModeRecovery: {
		Mode:     synth.ModeRecovery,
		Adjacent: []synth.Mode{synth.ModeDeep, synth.ModeEnergy, synth.ModeCalm},
	},
	synth.ModeCalm: {
		Mode:     synth.ModeCalm,
		Adjacent: []synth.Mode{synth.ModeFocus, synth.ModeRecovery, synth.ModeSleep},
	},
	synth.ModeSleep: {
		Mode:     synth.ModeSleep,
		Adjacent: []synth.Mode{synth.ModeCalm},
	},
}

// ModeNames returns every mode in the graph, in the order of synth.Modes.
func ModeNames() []string {
	names := make([]string, 0, len(MoodGraph))
	for _, m := range synth.Modes {
		if _, ok := MoodGraph[m]; ok {
			names = append(names, string(m))
		}
	}
	return names
}

// Neighbors returns the modes reachable from m in one step. At night the
// subdued neighbors are preferred when there are any.
func Neighbors(m synth.Mode, tod synth.TimeOfDay) []synth.Mode {
	n, ok := MoodGraph[m]
	if !ok {
		return nil
	}
	if tod != synth.Night {
		return n.Adjacent
	}
	quiet := slices.DeleteFunc(slices.Clone(n.Adjacent), func(a synth.Mode) bool {
		return !a.Subdued()
	})
	if len(quiet) == 0 {
		return n.Adjacent
	}
	return quiet
}
