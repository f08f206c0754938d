// Package detector selects the output mode from the environment.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode is the rendering mode of the run output.
type OutputMode int

const (
	// ModeAuto detects the mode from the environment.
	ModeAuto OutputMode = iota
	// ModeColor renders with the terminal's full color profile.
	ModeColor
	// ModePlain renders basic ANSI colors suitable for CI logs.
	ModePlain
	// ModeTUI renders the interactive task view. It is never detected, only requested.
	ModeTUI
)

// DetectEnvironment returns ModePlain when stdout is not a terminal or CI is set, and ModeColor otherwise.
func DetectEnvironment() OutputMode {
	if !term.IsTerminal(int(os.Stdout.Fd())) || IsCI() { //nolint:gosec // Fd fits in int
		return ModePlain
	}
	return ModeColor
}

// IsCI reports whether the CI environment variable is set to a true value.
func IsCI() bool {
	ci := os.Getenv("CI")
	return ci == "true" || ci == "1"
}

// ResolveMode applies the user's --output flag to the detected mode.
// Accepted values are "auto", "color", "plain", "ci" and "tui"; anything else keeps the detected mode.
// A TUI request falls back to the detected mode when stdout is not interactive.
func ResolveMode(detected OutputMode, flag string) OutputMode {
	switch flag {
	case "color":
		return ModeColor
	case "plain", "ci":
		return ModePlain
	case "tui":
		if detected == ModePlain {
			return ModePlain
		}
		return ModeTUI
	default:
		return detected
	}
}
