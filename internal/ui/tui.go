package ui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages delivered to the running bubbletea program. Progress and error
// events are folded into the tracker before they are sent, so for the model
// they mostly act as repaint triggers.
type (
	progressUpdateMsg ProgressEvent
	errorMsg          ErrorEvent
	completeMsg       CompletionStats
	tickMsg           time.Time
)

// pipelineStages is the stage row shown across the top of the dashboard,
// in build order with names short enough to fit one line.
var pipelineStages = []struct {
	stage Stage
	name  string
}{
	{StageLoad, "Load"},
	{StageClean, "Clean"},
	{StageSplit, "Split"},
	{StageWrite, "Write"},
	{StageIndex, "Index"},
}

// TUIRenderer drives a live terminal dashboard for corpus builds.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	tracker *ProgressTracker
	model   *buildModel
	program *tea.Program
	started bool
	done    chan struct{}
}

var _ Renderer = (*TUIRenderer)(nil)

// NewTUIRenderer creates a TUI renderer, or fails when the configured
// output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	r := &TUIRenderer{
		cfg:     cfg,
		tracker: NewProgressTracker(),
		done:    make(chan struct{}),
	}
	r.model = newBuildModel(r.tracker, cfg.CorpusPath)
	if cfg.NoColor || DetectNoColor() {
		r.model.styles = NoColorStyles()
	}
	return r, nil
}

// Start launches the bubbletea program on its own goroutine. Calling
// it again is a no-op.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.started = true

	// Alternate screen buffer gives clean repaints and restores the
	// terminal on exit.
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// send forwards a message to the program once it is running.
func (r *TUIRenderer) send(msg tea.Msg) {
	if r.program != nil {
		r.program.Send(msg)
	}
}

// UpdateProgress folds the event into the tracker and nudges the
// program to repaint.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Stage != r.tracker.Stats().Stage {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Documents, event.Sentences, event.Message)
	r.send(progressUpdateMsg(event))
}

// AddError records the event for the status line tallies.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker.AddError(event)
	r.send(errorMsg(event))
}

// Complete switches the dashboard to the summary screen.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker.SetStage(StageComplete, 0)
	r.send(completeMsg(stats))
}

// Stop asks the program to quit and waits briefly; a wedged terminal
// must never block shutdown or Ctrl+C.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program == nil {
		return nil
	}

	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// buildModel is the bubbletea model behind the dashboard. Counters live in
// the shared tracker; the model holds presentation state only.
type buildModel struct {
	tracker    *ProgressTracker
	styles     Styles
	spin       spinner.Model
	bar        progress.Model
	width      int
	corpusPath string
	cancelled  bool
	complete   bool
	stats      CompletionStats
}

func newBuildModel(tracker *ProgressTracker, corpusPath string) *buildModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal))

	// Solid fill rather than the default gradient, to match the accent.
	bar := progress.New(
		progress.WithSolidFill(ColorTeal),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &buildModel{
		tracker:    tracker,
		styles:     DefaultStyles(),
		spin:       spin,
		bar:        bar,
		width:      80,
		corpusPath: corpusPath,
	}
}

// Init implements tea.Model.
func (m *buildModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

// tick schedules the next repaint; 100ms keeps the speed and ETA lines live.
func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" {
			m.cancelled = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 20)

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progressUpdateMsg, errorMsg:
		// Tracker state was already updated by the renderer; the next
		// tick repaints.
	}

	return m, nil
}

// View implements tea.Model.
func (m *buildModel) View() string {
	switch {
	case m.cancelled:
		return "Cancelled.\n"
	case m.complete:
		return m.summaryView()
	default:
		return m.buildView()
	}
}

// contentWidth returns the usable panel width for the current terminal.
func (m *buildModel) contentWidth() int {
	if w := m.width - 4; w >= 40 {
		return w
	}
	return 40 // keep the layout readable on tiny terminals
}

// buildView renders the live dashboard: stage row, progress, throughput,
// and the file currently being read, grouped by divider lines.
func (m *buildModel) buildView() string {
	width := m.contentWidth()
	stats := m.tracker.Stats()

	groups := [][]string{
		{m.stageRow(stats.Stage)},
		{m.progressBlock(stats), m.speedRow(stats)},
		{m.sparkRow(width)},
	}
	if stats.Message != "" {
		groups = append(groups, []string{m.styles.Dim.Render(truncatePath(stats.Message, width-2))})
	}

	var lines []string
	for i, g := range groups {
		if i > 0 {
			lines = append(lines, m.divider(width))
		}
		lines = append(lines, g...)
	}

	title := "Pretext Builder"
	if m.corpusPath != "" {
		title += " • " + m.corpusPath
	}

	return m.framed(title, strings.Join(lines, "\n"), width) + "\n" + m.statusLine()
}

// stageRow renders the pipeline stages with done/active/pending markers.
func (m *buildModel) stageRow(current Stage) string {
	parts := make([]string, 0, len(pipelineStages))
	for _, s := range pipelineStages {
		switch {
		case s.stage < current:
			parts = append(parts, m.styles.Success.Render("● "+s.name))
		case s.stage == current:
			parts = append(parts, m.styles.Active.Render(m.spin.View()+" "+s.name))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.name))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

// progressBlock renders the bar with running counts, falling back to counts
// alone while the document total is still unknown.
func (m *buildModel) progressBlock(stats ProgressStats) string {
	if stats.Total == 0 {
		counts := m.styles.Dim.Render("Preparing...")
		if stats.Documents > 0 || stats.Sentences > 0 {
			counts = m.styles.Label.Render(fmt.Sprintf("%d documents · %d sentences", stats.Documents, stats.Sentences))
		}
		return fmt.Sprintf("%s %s...\n%s", m.spin.View(), stats.Stage, counts)
	}

	bar := m.bar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	counts := m.styles.Label.Render(fmt.Sprintf("%d / %d documents · %d sentences", stats.Documents, stats.Total, stats.Sentences))
	return fmt.Sprintf("%s  %s\n%s", bar, pct, counts)
}

// speedRow renders throughput and, once it can be estimated, the ETA.
func (m *buildModel) speedRow(stats ProgressStats) string {
	speed := fmt.Sprintf("Speed: %.0f sent/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		speed += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}

	row := m.styles.Speed.Render(speed)
	if stats.ETA > 0 {
		row += m.styles.Dim.Render("  •  ") + m.styles.Label.Render("ETA: "+formatDuration(stats.ETA))
	}
	return row
}

// sparkRow renders the recent throughput history.
func (m *buildModel) sparkRow(width int) string {
	sparkWidth := max(width-10, 10)
	spark := m.styles.Sparkline.Render(m.tracker.RenderSparkline(sparkWidth))
	return spark + " " + m.styles.Dim.Render("sentences/s ─")
}

// divider renders a horizontal rule between dashboard groups.
func (m *buildModel) divider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

// framed wraps body in a rounded border with the title above it.
func (m *buildModel) framed(title, body string, width int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left, m.styles.Header.Render(title), box.Render(body))
}

// statusLine renders the error and warning tallies under the panel.
func (m *buildModel) statusLine() string {
	stats := m.tracker.Stats()

	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	if len(parts) == 0 {
		return m.styles.Dim.Render("q to quit")
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  ")) + m.styles.Dim.Render("  │  q to quit")
}

// summaryView renders the post-build summary panel.
func (m *buildModel) summaryView() string {
	lines := []string{m.styles.Success.Render("✓ Corpus Built"), ""}

	row := func(label, value string) string {
		return m.styles.Label.Render(fmt.Sprintf("%-10s", label)) + " " + m.styles.Active.Render(value)
	}
	lines = append(lines,
		row("Documents:", strconv.Itoa(m.stats.Documents)),
		row("Sentences:", strconv.Itoa(m.stats.Sentences)),
		row("Size:", FormatBytes(m.stats.Bytes)),
		row("Duration:", formatDuration(m.stats.Duration)),
	)
	if m.stats.Checksum != "" {
		lines = append(lines, row("Checksum:", shortChecksum(m.stats.Checksum)))
	}

	if avg := m.tracker.SpeedStats().Avg; avg > 0 {
		lines = append(lines,
			m.styles.Label.Render(fmt.Sprintf("%-10s", "Avg Speed:"))+" "+
				m.styles.Speed.Render(fmt.Sprintf("%.0f sentences/sec", avg)))
	}

	if m.stats.Errors > 0 || m.stats.Warnings > 0 {
		lines = append(lines, "")
	}
	if m.stats.Errors > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.stats.Errors)))
	}
	if m.stats.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.stats.Warnings)))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorTeal)). // accent border for success
		Padding(1, 2).
		Width(m.contentWidth())

	return box.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration renders a duration as compact h/m/s text.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, mins)
	case mins > 0 && secs > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm", mins)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// truncatePath shortens path to maxLen, preferring to keep the filename
// visible over the leading directories.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	slash := strings.LastIndex(path, "/")
	if slash < 0 {
		if maxLen < 4 {
			return "..."
		}
		return "..." + path[len(path)-maxLen+3:]
	}

	name := path[slash+1:]
	if len(name)+4 > maxLen {
		return "..." + name[len(name)-maxLen+3:]
	}

	keep := maxLen - len(name) - 4 // room left for directories after ".../"
	if keep <= 0 {
		return ".../" + name
	}
	dir := path[:slash]
	if len(dir) <= keep {
		return path
	}
	return "..." + dir[len(dir)-keep:] + "/" + name
}
