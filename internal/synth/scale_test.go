package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectScaleCatalog(t *testing.T) {
	rng := testRand()
	for i := 0; i < 50; i++ {
		s := SelectScale(ModeSleep, rng)
		assert.True(t, s.Minor)
		assert.Len(t, s.Notes, 5)

		s = SelectScale(ModeEnergy, rng)
		assert.False(t, s.Minor)
		assert.Len(t, s.Notes, 5)
	}
}

func TestEveryCatalogKeyResolves(t *testing.T) {
	for _, k := range majorKeyOrder {
		s, ok := LookupScale(k, false)
		require.True(t, ok, k)
		for _, f := range s.Notes {
			assert.Greater(t, f, 0.0, "%s major", k)
		}
	}
	for _, k := range minorKeyOrder {
		s, ok := LookupScale(k, true)
		require.True(t, ok, k)
		for _, f := range s.Notes {
			assert.Greater(t, f, 0.0, "%s minor", k)
		}
	}
	_, ok := LookupScale("H", false)
	assert.False(t, ok)
}

func TestChordAtWraps(t *testing.T) {
	s, _ := LookupScale("C", false)
	c := s.ChordAt(4, 1)
	// degrees 4, 6, 8 wrap to A, D, G
	assert.Equal(t, Chord{440.00, 293.66, 392.00}, c)
	assert.Equal(t, 440.0, c.Root())

	shifted := s.ChordAt(0, 1.02)
	assert.InDelta(t, 261.63*1.02, shifted[0], 1e-9)
}

func TestMelodyPoolCeiling(t *testing.T) {
	s, _ := LookupScale("B", false)
	pool := s.MelodyPool()
	require.NotEmpty(t, pool)
	for _, f := range pool {
		assert.Less(t, f, 800.0)
	}
	// B major: the upper B and G# land above 800 Hz
	assert.Len(t, pool, 8)

	rng := testRand()
	for i := 0; i < 20; i++ {
		f := MelodyNote(pool, 0.98, rng)
		assert.Less(t, f, 800.0)
	}
}
