// Package style provides the shared colors and icons of the CLI output.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	White  = lipgloss.Color("#FFFFFF")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Skip    = "-"
	Arrow   = "→"
)

// Header renders a bold section title in the accent color.
func Header(title string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(Iris).Render(title)
}
