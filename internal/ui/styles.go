// Package ui renders styled terminal output for the CLI.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#86EFAC"})
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"})
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// colorEnabled is decided once; output piped to a file stays plain.
var colorEnabled = IsTerminal(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == ""

// IsTerminal reports whether fd is attached to a terminal.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// SetColor forces styling on or off.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

func RenderPass(s string) string   { return render(passStyle, s) }
func RenderWarn(s string) string   { return render(warnStyle, s) }
func RenderFail(s string) string   { return render(failStyle, s) }
func RenderAccent(s string) string { return render(accentStyle, s) }
func RenderMuted(s string) string  { return render(mutedStyle, s) }
func RenderBold(s string) string   { return render(boldStyle, s) }

// RenderStatus colors a task status.
func RenderStatus(status string) string {
	switch status {
	case "completed":
		return RenderPass(status)
	case "in_progress":
		return RenderAccent(status)
	default:
		return status
	}
}

// RenderPriority colors a task priority.
func RenderPriority(priority string) string {
	switch priority {
	case "high":
		return RenderFail(priority)
	case "low":
		return RenderMuted(priority)
	default:
		return priority
	}
}

// TermWidth returns the terminal width of stdout, or fallback when it is not
// a terminal.
func TermWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// Truncate shortens s to at most width runes, marking the cut with "...".
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
