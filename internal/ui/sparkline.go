package ui

import (
	"strings"
)

// SparklineChars are the block characters used for the chart, lowest bar
// to full height.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps a rolling window of throughput samples and renders them
// as a row of Unicode block characters.
type Sparkline struct {
	samples []float64 // ring buffer
	head    int       // next write slot
	count   int       // lifetime samples
	max     float64   // scale ceiling
}

// NewSparkline creates a sparkline holding up to width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60 // one minute of history at one sample per second
	}
	return &Sparkline{samples: make([]float64, width)}
}

// Add records a new sample.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++
	s.max = max(s.max, value)

	// Rescan periodically so the scale can come back down after a spike
	// leaves the window.
	if s.count%len(s.samples) == 0 {
		s.rescale()
	}
}

// rescale recomputes the ceiling from the samples in the buffer.
func (s *Sparkline) rescale() {
	s.max = 1 // floor of 1 avoids dividing by zero on idle windows
	for _, v := range s.samples {
		s.max = max(s.max, v)
	}
}

// Render returns the chart as block characters, oldest sample on the left.
// A width of 0 or less renders the whole buffer; a narrower width keeps the
// newest samples. Slots never written render as spaces.
func (s *Sparkline) Render(width int) string {
	if width <= 0 || width > len(s.samples) {
		width = len(s.samples)
	}
	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}
	if s.max <= 0 {
		s.rescale()
	}

	window := s.window()
	if len(window) > width {
		window = window[len(window)-width:] // favor the newest samples
	}

	var sb strings.Builder
	sb.Grow(width * 3) // block characters are 3 bytes in UTF-8
	for _, v := range window {
		sb.WriteRune(SparklineChars[s.level(v)])
	}
	for i := len(window); i < width; i++ {
		sb.WriteRune(' ')
	}
	return sb.String()
}

// window returns the live samples in arrival order.
func (s *Sparkline) window() []float64 {
	if s.count < len(s.samples) {
		return s.samples[:s.count]
	}
	// Buffer has wrapped, so the oldest sample sits at head.
	out := make([]float64, 0, len(s.samples))
	out = append(out, s.samples[s.head:]...)
	out = append(out, s.samples[:s.head]...)
	return out
}

// level maps a value to an index into SparklineChars.
func (s *Sparkline) level(v float64) int {
	if s.max <= 0 {
		return 0
	}
	idx := int(v / s.max * float64(len(SparklineChars)-1))
	return min(max(idx, 0), len(SparklineChars)-1)
}

// Clear resets the sparkline to empty.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head = 0
	s.count = 0
	s.max = 0
}

// Count returns the running total of samples observed, including ones
// that have already left the window.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the current scale ceiling.
func (s *Sparkline) Max() float64 {
	return s.max
}
