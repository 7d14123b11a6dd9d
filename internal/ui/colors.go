// Package ui holds terminal styling for the harvest CLI.
package ui

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

func paint(style, s string) string {
	if s == "" {
		return ""
	}
	return style + s + ColorReset
}

func Bold(s string) string    { return paint(ColorBold, s) }
func Dim(s string) string     { return paint(ColorDim, s) }
func Accent(s string) string  { return paint(ColorCyan, s) }
func Success(s string) string { return paint(ColorGreen, s) }
func Warn(s string) string    { return paint(ColorYellow, s) }
func Error(s string) string   { return paint(ColorRed, s) }

// Info is dimmed yellow, for secondary figures next to a result.
func Info(s string) string { return paint(ColorDim+ColorYellow, s) }

// Outcome of one site run, as shown in the summary line.
type Outcome int

const (
	OutcomeClean Outcome = iota
	OutcomeDegraded
	OutcomeFailed
)

// Mark returns the leading symbol for a summary line.
func Mark(o Outcome) string {
	switch o {
	case OutcomeDegraded:
		return Warn("!")
	case OutcomeFailed:
		return Error("✗")
	default:
		return Success("✓")
	}
}
