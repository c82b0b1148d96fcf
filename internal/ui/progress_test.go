package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_StartsAtLoad(t *testing.T) {
	// When: creating a new tracker
	tracker := NewProgressTracker()

	// Then: it reports the load stage with nothing counted yet
	stats := tracker.Stats()
	assert.Equal(t, StageLoad, stats.Stage)
	assert.Zero(t, stats.Documents)
	assert.Zero(t, stats.Sentences)
	assert.Zero(t, stats.Total)
	assert.Empty(t, stats.Message)
}

func TestProgressTracker_UpdateAndSnapshot(t *testing.T) {
	// Given: a tracker in the write stage with a known total
	tracker := NewProgressTracker()
	tracker.SetStage(StageWrite, 200)

	// When: recording progress and an error each way
	tracker.Update(100, 420, "data/part-0.jsonl")
	tracker.AddError(ErrorEvent{Source: "data/broken.jsonl:3", Err: assert.AnError})
	tracker.AddError(ErrorEvent{Source: "data/odd.jsonl:9", Err: assert.AnError, IsWarn: true})

	// Then: the snapshot reflects all of it
	stats := tracker.Stats()
	assert.Equal(t, StageWrite, stats.Stage)
	assert.Equal(t, 100, stats.Documents)
	assert.Equal(t, 420, stats.Sentences)
	assert.Equal(t, 200, stats.Total)
	assert.InDelta(t, 0.5, stats.Progress, 0.01)
	assert.Equal(t, "data/part-0.jsonl", stats.Message)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 1, stats.WarnCount)
}

func TestProgressTracker_Progress(t *testing.T) {
	tests := []struct {
		name      string
		documents int
		total     int
		want      float64
	}{
		{"unknown total", 10, 0, 0.0},
		{"nothing done", 0, 100, 0.0},
		{"half done", 50, 100, 0.5},
		{"all done", 100, 100, 1.0},
		{"overshoot clamps", 150, 100, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewProgressTracker()
			tracker.SetStage(StageWrite, tt.total)
			tracker.Update(tt.documents, tt.documents*4, "")

			assert.InDelta(t, tt.want, tracker.Progress(), 0.01)
		})
	}
}

func TestProgressTracker_SetStage_ResetsCounts(t *testing.T) {
	// Given: a tracker with progress recorded in one stage
	tracker := NewProgressTracker()
	tracker.SetStage(StageWrite, 500)
	tracker.Update(500, 2000, "data/last.jsonl")

	// When: moving to the next stage
	tracker.SetStage(StageIndex, 0)

	// Then: counts and message start over
	stats := tracker.Stats()
	assert.Equal(t, StageIndex, stats.Stage)
	assert.Zero(t, stats.Documents)
	assert.Zero(t, stats.Sentences)
	assert.Empty(t, stats.Message)
}

func TestProgressTracker_MessageSticky(t *testing.T) {
	// Given: a tracker that saw a dataset file
	tracker := NewProgressTracker()
	tracker.SetStage(StageLoad, 0)
	tracker.Update(1, 3, "data/part-0.jsonl")

	// When: later updates carry no message
	tracker.Update(2, 8, "")

	// Then: the last file stays on display
	assert.Equal(t, "data/part-0.jsonl", tracker.Stats().Message)
}

func TestProgressTracker_ErrorsAndWarnings(t *testing.T) {
	// Given: a tracker with one of each
	tracker := NewProgressTracker()
	tracker.AddError(ErrorEvent{Source: "data/broken.jsonl:3", Err: assert.AnError})
	tracker.AddError(ErrorEvent{Source: "data/odd.jsonl:9", Err: assert.AnError, IsWarn: true})

	// Then: they are kept apart
	require.Len(t, tracker.Errors(), 1)
	require.Len(t, tracker.Warnings(), 1)
	assert.Equal(t, "data/broken.jsonl:3", tracker.Errors()[0].Source)
	assert.Equal(t, "data/odd.jsonl:9", tracker.Warnings()[0].Source)
}

func TestProgressTracker_ETA_Unknown(t *testing.T) {
	tests := []struct {
		name  string
		total int
		docs  int
	}{
		{"no progress yet", 100, 0},
		{"total unknown", 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewProgressTracker()
			tracker.SetStage(StageWrite, tt.total)
			if tt.docs > 0 {
				tracker.Update(tt.docs, tt.docs*4, "")
			}

			// Then: no estimate is produced
			assert.Equal(t, time.Duration(0), tracker.ETA())
		})
	}
}

func TestProgressTracker_ETA_PartialProgress(t *testing.T) {
	// Given: a tracker half done after ~50ms
	tracker := NewProgressTracker()
	tracker.SetStage(StageWrite, 100)
	time.Sleep(50 * time.Millisecond)
	tracker.Update(50, 200, "")

	// When: asking for an estimate
	eta := tracker.ETA()

	// Then: it lands near the elapsed time, never negative
	assert.GreaterOrEqual(t, eta, time.Duration(0))
	assert.Less(t, eta, 500*time.Millisecond)
}

func TestProgressTracker_ConcurrentUse(t *testing.T) {
	// Given: a tracker hammered from many goroutines
	tracker := NewProgressTracker()
	tracker.SetStage(StageWrite, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tracker.Update(n, n*4, "data/part.jsonl")
			tracker.Progress()
			tracker.Stats()
		}(i)
	}
	wg.Wait()

	// Then: no race, no panic
	require.NotNil(t, tracker.Stats())
}

func TestProgressTracker_Elapsed(t *testing.T) {
	// Given: a tracker that has existed for a moment
	tracker := NewProgressTracker()
	time.Sleep(10 * time.Millisecond)

	// Then: elapsed time accumulates from creation
	assert.GreaterOrEqual(t, tracker.Elapsed(), 10*time.Millisecond)
}
