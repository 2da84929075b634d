package synth

import "math/rand/v2"

// chromatic holds the fourth-octave note frequencies in Hz.
var chromatic = map[string]float64{
	"C": 261.63, "C#": 277.18, "D": 293.66, "D#": 311.13,
	"E": 329.63, "F": 349.23, "F#": 369.99, "G": 392.00,
	"G#": 415.30, "A": 440.00, "A#": 466.16, "B": 493.88,
}

// Catalog key orders. A given rng draw always maps to the same key.
var majorKeyOrder = []string{"C", "G", "D", "A", "E", "B", "F#", "Db", "Ab", "Eb", "Bb", "F"}
var minorKeyOrder = []string{"A", "E", "B", "F#", "Db", "Ab", "Eb", "Bb", "F", "C", "G", "D"}

var majorPentatonic = map[string][]string{
	"C":  {"C", "D", "E", "G", "A"},
	"G":  {"G", "A", "B", "D", "E"},
	"D":  {"D", "E", "F#", "A", "B"},
	"A":  {"A", "B", "C#", "E", "F#"},
	"E":  {"E", "F#", "G#", "B", "C#"},
	"B":  {"B", "C#", "D#", "F#", "G#"},
	"F#": {"F#", "G#", "A#", "C#", "D#"},
	"Db": {"D#", "F", "G", "A#", "C"},
	"Ab": {"G#", "A#", "C", "D#", "F"},
	"Eb": {"D#", "F", "G", "A#", "C"},
	"Bb": {"A#", "C", "D", "F", "G"},
	"F":  {"F", "G", "A", "C", "D"},
}

var minorPentatonic = map[string][]string{
	"A":  {"A", "C", "D", "E", "G"},
	"E":  {"E", "G", "A", "B", "D"},
	"B":  {"B", "D", "E", "F#", "A"},
	"F#": {"F#", "A", "B", "C#", "E"},
	"Db": {"D#", "F", "G#", "A#", "C"},
	"Ab": {"G#", "B", "C#", "D#", "F#"},
	"Eb": {"D#", "F#", "G#", "A#", "C#"},
	"Bb": {"A#", "C#", "D#", "F", "G#"},
	"F":  {"F", "A", "B", "C", "E"},
	"C":  {"C", "D#", "F", "G", "A#"},
	"G":  {"G", "A#", "C", "D", "F"},
	"D":  {"D", "F", "G", "A", "C"},
}

// melodyCeiling bounds melody notes in Hz before key shift.
const melodyCeiling = 800.0

// Scale is a keyed pentatonic scale.
type Scale struct {
	Key   string
	Minor bool
	Notes []float64
}

// Name returns e.g. "A minor pentatonic".
func (s Scale) Name() string {
	if s.Minor {
		return s.Key + " minor pentatonic"
	}
	return s.Key + " major pentatonic"
}

// Chord is three key-shifted frequencies.
type Chord [3]float64

// Root is the lowest chord tone by scale position.
func (c Chord) Root() float64 { return c[0] }

var chordDegrees = [3]int{0, 2, 4}

// chordRootDegrees is the inclusive upper bound of a chord root draw.
const chordRootDegrees = 5

func buildScale(key string, minor bool) Scale {
	catalog := majorPentatonic
	if minor {
		catalog = minorPentatonic
	}
	names := catalog[key]
	notes := make([]float64, len(names))
	for i, n := range names {
		notes[i] = chromatic[n]
	}
	return Scale{Key: key, Minor: minor, Notes: notes}
}

// LookupScale returns the catalog scale for key, or false if absent.
func LookupScale(key string, minor bool) (Scale, bool) {
	catalog := majorPentatonic
	if minor {
		catalog = minorPentatonic
	}
	if _, ok := catalog[key]; !ok {
		return Scale{}, false
	}
	return buildScale(key, minor), true
}

// SelectScale picks a random key from the catalog matching mode.
func SelectScale(mode Mode, rng *rand.Rand) Scale {
	minor := mode.Subdued()
	keys := majorKeyOrder
	if minor {
		keys = minorKeyOrder
	}
	return buildScale(keys[rng.IntN(len(keys))], minor)
}

// ChordAt builds the chord rooted at scale degree root, key-shifted by
// keyMult.
func (s Scale) ChordAt(root int, keyMult float64) Chord {
	var c Chord
	for i, d := range chordDegrees {
		c[i] = s.Notes[(root+d)%len(s.Notes)] * keyMult
	}
	return c
}

// RandomChord draws a chord root uniformly from [0,5].
func (s Scale) RandomChord(keyMult float64, rng *rand.Rand) Chord {
	return s.ChordAt(rng.IntN(chordRootDegrees+1), keyMult)
}

// MelodyPool is the scale plus its upper octave, kept below 800 Hz.
func (s Scale) MelodyPool() []float64 {
	pool := make([]float64, 0, 2*len(s.Notes))
	for _, octave := range []float64{1, 2} {
		for _, f := range s.Notes {
			if f*octave < melodyCeiling {
				pool = append(pool, f*octave)
			}
		}
	}
	return pool
}

// MelodyNote draws one key-shifted note from pool.
func MelodyNote(pool []float64, keyMult float64, rng *rand.Rand) float64 {
	return pool[rng.IntN(len(pool))] * keyMult
}
