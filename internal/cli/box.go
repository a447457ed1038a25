package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Tree drawing characters
const (
	TreeBranch     = "├─"
	TreeLastBranch = "└─"
)

// Status indicators
const (
	CheckMark = "✓"
	CrossMark = "✗"
	Bullet    = "●"
	Circle    = "○"
	Warning   = "!"
)

// Pad right-pads s to width visible cells, ignoring color codes.
func Pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// Truncate shortens s to max runes, ending with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
