package ui

import "github.com/charmbracelet/lipgloss"

// Color palette with a single teal accent so the build screen reads as one
// coherent surface rather than a traffic light.
const (
	ColorTeal     = "43"  // primary accent (#00D7AF)
	ColorGray     = "245" // labels and secondary figures
	ColorDarkGray = "238" // borders and de-emphasized text
	ColorRed      = "196" // error lines
	ColorYellow   = "220" // warning lines
)

// Styles holds the lipgloss styles the TUI renders with.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Active   lipgloss.Style
	Progress lipgloss.Style

	Border    lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// DefaultStyles builds the teal-accented style set.
func DefaultStyles() Styles {
	accent := lipgloss.Color(ColorTeal)
	gray := lipgloss.Color(ColorGray)
	dark := lipgloss.Color(ColorDarkGray)

	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Success:  lipgloss.NewStyle().Foreground(accent),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:      lipgloss.NewStyle().Foreground(dark),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Progress: lipgloss.NewStyle().Foreground(accent),

		Border:    lipgloss.NewStyle().Foreground(dark),
		Sparkline: lipgloss.NewStyle().Foreground(accent),
		Speed:     lipgloss.NewStyle().Foreground(gray),
		Label:     lipgloss.NewStyle().Foreground(gray),
	}
}

// NoColorStyles collapses everything to an unstyled passthrough for
// NO_COLOR terminals.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:    plain,
		Success:   plain,
		Warning:   plain,
		Error:     plain,
		Dim:       plain,
		Active:    plain,
		Progress:  plain,
		Border:    plain,
		Sparkline: plain,
		Speed:     plain,
		Label:     plain,
	}
}

// GetStyles picks the palette for the user's color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
