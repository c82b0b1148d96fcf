package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelAt builds a dashboard model over a tracker prepared by setup.
func modelAt(setup func(*ProgressTracker)) *buildModel {
	tracker := NewProgressTracker()
	if setup != nil {
		setup(tracker)
	}
	return newBuildModel(tracker, "")
}

func TestNewTUIRenderer_RequiresTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestBuildModel_StageRow(t *testing.T) {
	model := modelAt(func(tr *ProgressTracker) { tr.SetStage(StageWrite, 100) })

	view := model.View()
	for _, name := range []string{"Load", "Clean", "Split", "Write", "Index"} {
		assert.Contains(t, view, name)
	}
}

func TestBuildModel_ProgressLine(t *testing.T) {
	t.Run("known total shows bar counts", func(t *testing.T) {
		model := modelAt(func(tr *ProgressTracker) {
			tr.SetStage(StageWrite, 100)
			tr.Update(50, 210, "")
		})

		view := model.View()
		assert.Contains(t, view, "50 / 100 documents")
		assert.Contains(t, view, "210 sentences")
	})

	t.Run("unknown total shows running counts", func(t *testing.T) {
		model := modelAt(func(tr *ProgressTracker) {
			tr.SetStage(StageWrite, 0)
			tr.Update(12, 48, "")
		})

		view := model.View()
		assert.Contains(t, view, "12 documents")
		assert.Contains(t, view, "48 sentences")
	})
}

func TestBuildModel_ShowsCurrentFile(t *testing.T) {
	model := modelAt(func(tr *ProgressTracker) {
		tr.SetStage(StageLoad, 0)
		tr.Update(1, 4, "data/parts/docstrings-0.jsonl")
	})

	assert.Contains(t, model.View(), "docstrings-0.jsonl")
}

func TestBuildModel_HeaderNamesCorpus(t *testing.T) {
	model := newBuildModel(NewProgressTracker(), "out/corpus.txt")

	assert.Contains(t, model.View(), "Pretext Builder • out/corpus.txt")
}

func TestBuildModel_StatusLineTallies(t *testing.T) {
	model := modelAt(func(tr *ProgressTracker) {
		tr.AddError(ErrorEvent{Source: "data/broken.jsonl:3", Err: assert.AnError})
		tr.AddError(ErrorEvent{Source: "data/odd.jsonl:9", Err: assert.AnError, IsWarn: true})
	})

	view := model.View()
	assert.Contains(t, view, "1 errors")
	assert.Contains(t, view, "1 warnings")
}

func TestBuildModel_SummaryView(t *testing.T) {
	model := modelAt(func(tr *ProgressTracker) { tr.SetStage(StageComplete, 0) })
	model.complete = true
	model.stats = CompletionStats{
		Documents: 100,
		Sentences: 500,
		Bytes:     2048,
		Duration:  3 * time.Second,
		Checksum:  "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	}

	view := model.View()
	assert.Contains(t, view, "Corpus Built")
	assert.Contains(t, view, "100")
	assert.Contains(t, view, "500")
	assert.Contains(t, view, "9f86d081884c", "checksum is shortened for display")
}

func TestBuildModel_CtrlCCancels(t *testing.T) {
	model := newBuildModel(NewProgressTracker(), "")

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.Contains(t, updated.View(), "Cancelled")
}

func TestBuildModel_CompleteMsgQuits(t *testing.T) {
	model := newBuildModel(NewProgressTracker(), "")

	updated, cmd := model.Update(completeMsg(CompletionStats{Documents: 1, Sentences: 2}))

	require.NotNil(t, cmd, "completion must quit the program")
	bm, ok := updated.(*buildModel)
	require.True(t, ok)
	assert.True(t, bm.complete)
	assert.Equal(t, 1, bm.stats.Documents)
}

func TestTruncatePath(t *testing.T) {
	t.Run("short paths pass through", func(t *testing.T) {
		assert.Equal(t, "data/part.jsonl", truncatePath("data/part.jsonl", 50))
	})

	t.Run("long paths keep the filename", func(t *testing.T) {
		got := truncatePath("data/exports/very/deeply/nested/directory/docstrings.jsonl", 30)

		assert.LessOrEqual(t, len(got), 30)
		assert.Contains(t, got, "...")
		assert.Contains(t, got, "docstrings.jsonl")
	})

	t.Run("empty stays empty", func(t *testing.T) {
		assert.Equal(t, "", truncatePath("", 50))
	})
}
