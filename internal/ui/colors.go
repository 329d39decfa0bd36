// Package ui holds the ANSI styling used by the CLI output.
package ui

import "os"

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

// Enabled turns styling on or off for the helpers below. It starts disabled
// when NO_COLOR is set.
var Enabled = os.Getenv("NO_COLOR") == ""

func paint(style, s string) string {
	if !Enabled {
		return s
	}
	return style + s + ColorReset
}

func Bold(s string) string    { return paint(ColorBold, s) }
func Success(s string) string { return paint(ColorGreen, s) }
func Info(s string) string    { return paint(ColorDim+ColorYellow, s) }
func Warn(s string) string    { return paint(ColorYellow, s) }
func Error(s string) string   { return paint(ColorRed, s) }

// Muted renders secondary values such as hashes and paths.
func Muted(s string) string { return paint(ColorDim, s) }
