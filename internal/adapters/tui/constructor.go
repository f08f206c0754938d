// Package tui provides the interactive task view of a run.
package tui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/lathe/internal/ui/output"
)

// NewModel creates a model following the running task. The color profile is
// taken from w.
func NewModel(w io.Writer) Model {
	lipgloss.SetColorProfile(output.New(w).Profile)

	return Model{
		Tasks:      make([]*TaskNode, 0),
		TaskMap:    make(map[string]*TaskNode),
		SpanMap:    make(map[string]*TaskNode),
		FollowMode: true,
	}
}
