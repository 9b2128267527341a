package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Prompt  lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so colors follow
// the destination's color profile.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success: lr.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    lr.NewStyle().Foreground(lipgloss.Color("14")),
		Muted:   lr.NewStyle().Faint(true),
		Accent:  lr.NewStyle().Foreground(lipgloss.Color("13")),
		Prompt:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	}
}
