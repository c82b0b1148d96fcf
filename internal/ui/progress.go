package ui

import (
	"sync"
	"time"
)

// speedMeter tracks sentence throughput. Readings are taken at most every
// 500ms so per-batch jitter does not swamp the display.
type speedMeter struct {
	lastCount  int
	lastSample time.Time
	current    float64
	avg        float64
	peak       float64
	samples    int
	history    *Sparkline
}

func newSpeedMeter(now time.Time) speedMeter {
	return speedMeter{
		lastSample: now,
		history:    NewSparkline(60),
	}
}

// reset clears all throughput state, keeping the history buffer allocated.
func (sm *speedMeter) reset(now time.Time) {
	sm.lastCount = 0
	sm.lastSample = now
	sm.current = 0
	sm.avg = 0
	sm.peak = 0
	sm.samples = 0
	sm.history.Clear()
}

// observe folds a new cumulative sentence count into the meter.
func (sm *speedMeter) observe(now time.Time, sentences int) {
	elapsed := now.Sub(sm.lastSample)
	if elapsed < 500*time.Millisecond {
		return
	}

	if delta := sentences - sm.lastCount; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		sm.current = speed

		sm.samples++
		if sm.samples == 1 {
			sm.avg = speed
		} else {
			// Exponential smoothing keeps the average responsive but stable.
			sm.avg = 0.2*speed + 0.8*sm.avg
		}

		sm.peak = max(sm.peak, speed)
		sm.history.Add(speed)
	}

	sm.lastCount = sentences
	sm.lastSample = now
}

func (sm *speedMeter) stats() SpeedStats {
	return SpeedStats{Current: sm.current, Avg: sm.avg, Peak: sm.peak}
}

// SpeedStats contains throughput metrics for display.
type SpeedStats struct {
	Current float64 // current sentences/sec
	Avg     float64 // rolling average
	Peak    float64 // maximum observed
}

// ProgressStats is a snapshot of the tracker state.
type ProgressStats struct {
	Stage      Stage
	Documents  int
	Sentences  int
	Total      int
	Progress   float64
	ETA        time.Duration
	Message    string
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// ProgressTracker holds build progress shared between the pipeline and the
// renderers. All methods are safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	documents  int
	sentences  int
	total      int // expected documents, 0 when unknown
	message    string
	startTime  time.Time
	stageStart time.Time
	errors     []ErrorEvent
	warnings   []ErrorEvent
	speed      speedMeter

	lastETA time.Duration // previous estimate, kept for smoothing
}

// NewProgressTracker creates a tracker positioned at the load stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageLoad,
		startTime:  now,
		stageStart: now,
		speed:      newSpeedMeter(now),
	}
}

// SetStage transitions to a new stage, resetting counts and throughput.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.total = total
	p.documents = 0
	p.sentences = 0
	p.message = ""
	p.stageStart = now
	p.lastETA = 0
	p.speed.reset(now)
}

// Update records cumulative document and sentence counts for the current
// stage. An empty message keeps the previous one.
func (p *ProgressTracker) Update(documents, sentences int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.documents = documents
	p.sentences = sentences
	if message != "" {
		p.message = message
	}
	p.speed.observe(time.Now(), sentences)
}

// AddError files the event under errors or warnings by severity.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
		return
	}
	p.errors = append(p.errors, event)
}

// ratio returns documents/total clamped to [0, 1], 0 when the total is
// unknown. Callers must hold the lock.
func (p *ProgressTracker) ratio() float64 {
	if p.total <= 0 {
		return 0
	}
	return min(float64(p.documents)/float64(p.total), 1)
}

// Progress returns completion through the expected documents (0.0-1.0),
// or 0 when the total is unknown.
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ratio()
}

// ETA estimates the remaining time from current progress. It takes the
// write lock because the smoothed estimate is stored between calls.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.smoothedETA()
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns a snapshot of the current state. It takes the write lock
// because computing the ETA updates the smoothing state.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:      p.stage,
		Documents:  p.documents,
		Sentences:  p.sentences,
		Total:      p.total,
		Progress:   p.ratio(),
		ETA:        p.smoothedETA(),
		Message:    p.message,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
		Speed:      p.speed.stats(),
	}
}

// etaSmoothingFactor weights new estimates against the previous one; 0.3
// keeps the display steady while batch times vary.
const etaSmoothingFactor = 0.3

// smoothedETA projects remaining time from stage elapsed time and blends it
// with the previous estimate. Callers must hold the write lock.
func (p *ProgressTracker) smoothedETA() time.Duration {
	done := p.ratio()
	if done <= 0 || done >= 1 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	remaining := time.Duration(float64(elapsed) * (1 - done) / done)
	if remaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = remaining
	} else {
		p.lastETA = time.Duration(etaSmoothingFactor*float64(remaining) + (1-etaSmoothingFactor)*float64(p.lastETA))
	}
	return p.lastETA
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns a copy of the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.warnings...)
}

// RenderSparkline returns the throughput chart at the given width.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.speed.history == nil {
		return ""
	}
	return p.speed.history.Render(width)
}

// SpeedStats returns current throughput statistics.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.speed.stats()
}
