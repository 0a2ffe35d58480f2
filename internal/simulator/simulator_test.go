package simulator

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFieldsWithinVocabulary(t *testing.T) {
	g := NewSeeded(1, 2)

	for i := 0; i < 500; i++ {
		ev := g.Generate()
		assert.Contains(t, processNames, ev.ProcessName)
		assert.Contains(t, eventTypes, ev.EventType)
		assert.GreaterOrEqual(t, ev.EntropyScore, 30.0)
		assert.LessOrEqual(t, ev.EntropyScore, 100.0)
		assert.GreaterOrEqual(t, ev.RenameCount, 0)
		assert.Less(t, ev.RenameCount, 200)

		dot := strings.LastIndex(ev.FilePath, ".")
		require.Positive(t, dot)
		assert.True(t, slices.Contains(fileExtensions, ev.FilePath[dot+1:]))
	}
}

func TestGenerateProducesAllBands(t *testing.T) {
	g := NewSeeded(7, 11)

	var normal, suspicious, threat int
	for i := 0; i < 2000; i++ {
		ev := g.Generate()
		switch {
		case ev.EntropyScore >= 80:
			threat++
			assert.GreaterOrEqual(t, ev.RenameCount, 100)
		case ev.EntropyScore >= 65:
			suspicious++
			assert.GreaterOrEqual(t, ev.RenameCount, 20)
		default:
			normal++
			assert.Less(t, ev.RenameCount, 5)
		}
	}

	// All three profiles show up, and normal traffic dominates
	assert.Positive(t, normal)
	assert.Positive(t, suspicious)
	assert.Positive(t, threat)
	assert.Greater(t, normal, suspicious+threat)
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	a := NewSeeded(42, 42)
	b := NewSeeded(42, 42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Generate(), b.Generate())
	}
}

func TestGenerateBatch(t *testing.T) {
	g := NewSeeded(3, 4)
	batch := g.GenerateBatch(25)
	require.Len(t, batch, 25)
	for _, ev := range batch {
		assert.NotEmpty(t, ev.ProcessName)
	}
}
