package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	base      lipgloss.Style
	brand     lipgloss.Style
	accent    lipgloss.Style
	muted     lipgloss.Style
	error     lipgloss.Style
	self      lipgloss.Style
	sender    lipgloss.Style
	timestamp lipgloss.Style
	input     lipgloss.Style
	focused   lipgloss.Style
}

func newTheme(r *lipgloss.Renderer) theme {
	body := lipgloss.AdaptiveColor{Dark: "#94A3B8", Light: "#64748B"}
	accent := lipgloss.AdaptiveColor{Dark: "#F1F5F9", Light: "#0F172A"}
	border := lipgloss.AdaptiveColor{Dark: "#2D3748", Light: "#CBD5E0"}
	brand := lipgloss.Color("#3B82F6")

	return theme{
		base:      r.NewStyle().Foreground(body),
		brand:     r.NewStyle().Foreground(brand).Bold(true),
		accent:    r.NewStyle().Foreground(accent),
		muted:     r.NewStyle().Foreground(body).Faint(true),
		error:     r.NewStyle().Foreground(lipgloss.Color("#EF4444")),
		self:      r.NewStyle().Foreground(brand).Bold(true),
		sender:    r.NewStyle().Foreground(accent).Bold(true),
		timestamp: r.NewStyle().Foreground(body).Faint(true),
		input:     r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
		focused:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(brand).Padding(0, 1),
	}
}
