package chat

import "github.com/charmbracelet/lipgloss"

// Styles collects the lipgloss styles used across the TUI.
type Styles struct {
	Header    lipgloss.Style
	Badge     lipgloss.Style
	Success   lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	UserInput lipgloss.Style
	Prompt    lipgloss.Style
	Spinner   lipgloss.Style
	Content   lipgloss.Style
	ErrorText lipgloss.Style

	Primary lipgloss.Color
	Accent  lipgloss.Color
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	primary := lipgloss.Color("86")  // cyan
	accent := lipgloss.Color("212")  // pink
	muted := lipgloss.Color("241")   // gray
	success := lipgloss.Color("78")  // green
	danger := lipgloss.Color("203")  // red

	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(primary).
			Padding(0, 1),
		Badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(muted).
			Padding(0, 1),
		Success:   lipgloss.NewStyle().Foreground(success),
		Muted:     lipgloss.NewStyle().Foreground(muted),
		Bold:      lipgloss.NewStyle().Bold(true),
		UserInput: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Prompt:    lipgloss.NewStyle().Foreground(accent),
		Spinner:   lipgloss.NewStyle().Foreground(accent),
		Content:   lipgloss.NewStyle().Padding(0, 1),
		ErrorText: lipgloss.NewStyle().Foreground(danger),

		Primary: primary,
		Accent:  accent,
	}
}

// RenderDivider draws a horizontal rule sized to the terminal width.
func (s Styles) RenderDivider(width int) string {
	if width <= 0 {
		width = 80
	}
	line := make([]rune, width)
	for i := range line {
		line[i] = '─'
	}
	return s.Muted.Render(string(line))
}
