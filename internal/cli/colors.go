// Package cli provides shared terminal output helpers for pigs commands.
package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Tokyo Night inspired color palette
var (
	ColorFg     = lipgloss.Color("#c0caf5")
	ColorMuted  = lipgloss.Color("#565f89")
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorRed    = lipgloss.Color("#f7768e")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorCyan   = lipgloss.Color("#7dcfff")
	ColorAccent = lipgloss.Color("#d4a373")
)

var (
	styleBold   = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(ColorMuted)
	styleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	styleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	styleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	styleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	styleCyan   = lipgloss.NewStyle().Foreground(ColorCyan)
	styleAccent = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
)

// colorsEnabled caches whether colors should be used
var colorsEnabled *bool

// ColorsEnabled returns true if stdout is a terminal and NO_COLOR is not set.
func ColorsEnabled() bool {
	if colorsEnabled != nil {
		return *colorsEnabled
	}

	enabled := term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	colorsEnabled = &enabled
	return enabled
}

// ForceColors enables or disables colors regardless of terminal detection.
func ForceColors(enabled bool) {
	colorsEnabled = &enabled
}

// Styled renders text with style only if colors are enabled.
func Styled(text string, style lipgloss.Style) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}

func Bolden(text string) string { return Styled(text, styleBold) }

func Dimmed(text string) string { return Styled(text, styleDim) }

func Accent(text string) string { return Styled(text, styleAccent) }

func GreenText(text string) string { return Styled(text, styleGreen) }

func BlueText(text string) string { return Styled(text, styleBlue) }

func RedText(text string) string { return Styled(text, styleRed) }

func YellowText(text string) string { return Styled(text, styleYellow) }

func CyanText(text string) string { return Styled(text, styleCyan) }

// StateText colors a lifecycle state name.
func StateText(state string) string {
	switch state {
	case "active":
		return GreenText(state)
	case "requested", "created":
		return BlueText(state)
	case "pending_delete":
		return YellowText(state)
	case "deleted":
		return Dimmed(state)
	default:
		return state
	}
}
