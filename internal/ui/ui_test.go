package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Labels(t *testing.T) {
	tests := []struct {
		stage Stage
		verb  string
		tag   string
	}{
		{StageLoad, "Loading", "LOAD"},
		{StageClean, "Cleaning", "CLEAN"},
		{StageSplit, "Splitting", "SPLIT"},
		{StageWrite, "Writing", "WRITE"},
		{StageIndex, "Indexing", "INDEX"},
		{StageComplete, "Complete", "DONE"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.verb, tt.stage.String())
			assert.Equal(t, tt.tag, tt.stage.Icon())
		})
	}
}

func TestStage_OutOfRange(t *testing.T) {
	// Labels for a stage past the defined range degrade instead of
	// panicking.
	bogus := Stage(99)

	assert.Equal(t, "Unknown", bogus.String())
	assert.Equal(t, "???", bogus.Icon())
}

func TestIsTTY_NonTerminalWriters(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}), "a buffer is not a terminal")
	assert.False(t, IsTTY(nil))
}

func TestNewConfig_PlainAndColorAreOptIn(t *testing.T) {
	cfg := NewConfig(&bytes.Buffer{})

	assert.NotNil(t, cfg.Output)
	assert.False(t, cfg.ForcePlain)
	assert.False(t, cfg.NoColor)
	assert.Empty(t, cfg.CorpusPath)
}

func TestNewConfig_OptionsApply(t *testing.T) {
	cfg := NewConfig(&bytes.Buffer{},
		WithForcePlain(true),
		WithNoColor(true),
		WithCorpusPath("out/corpus.txt"))

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "out/corpus.txt", cfg.CorpusPath)
}

// Both a forced-plain config and a non-terminal writer must select
// the plain renderer; the TUI only ever starts on a real TTY.
func TestNewRenderer_PicksPlainRenderer(t *testing.T) {
	t.Run("forced plain", func(t *testing.T) {
		r := NewRenderer(NewConfig(&bytes.Buffer{}, WithForcePlain(true)))
		_, ok := r.(*PlainRenderer)
		require.True(t, ok, "expected PlainRenderer")
	})

	t.Run("non-tty output", func(t *testing.T) {
		r := NewRenderer(NewConfig(&bytes.Buffer{}))
		_, ok := r.(*PlainRenderer)
		require.True(t, ok, "expected PlainRenderer")
	})
}
