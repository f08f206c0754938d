package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/lathe/internal/ui/style"
)

// View renders the UI.
func (m *Model) View() string {
	if m.ListHeight == 0 {
		return "Initializing..."
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.taskList(),
		m.logPane(),
	)
}

func (m *Model) taskList() string {
	var s strings.Builder

	title := titleStyle.Render("TASKS")
	if m.failed() {
		title = failureTitleStyle.Render("TASKS")
	}
	if m.Runs > 1 {
		title += taskPendingStyle.Render(fmt.Sprintf(" run %d", m.Runs))
	}
	s.WriteString(title + "\n\n")

	end := min(m.ListOffset+m.ListHeight, len(m.Tasks))
	start := min(m.ListOffset, end)
	for i := start; i < end; i++ {
		s.WriteString(m.renderTaskRow(i, m.Tasks[i]) + "\n")
	}

	return listStyle.Render(s.String())
}

func (m *Model) renderTaskRow(index int, task *TaskNode) string {
	icon := taskIcon(task)
	rowStyle := taskStyle(task)

	cursor := "  "
	if index == m.SelectedIdx {
		cursor = selectedStyle.Render("> ")
		if task.Status != StatusDone && task.Status != StatusError {
			rowStyle = selectedStyle
		}
	}

	content := fmt.Sprintf("%s %s", icon, task.Name)
	if task.Duration > 0 && !task.Cached {
		content += " " + task.Duration.Round(time.Millisecond).String()
	}
	return cursor + rowStyle.Render(content)
}

func taskIcon(task *TaskNode) string {
	if task.Cached {
		return style.Tilde
	}

	switch task.Status {
	case StatusRunning:
		return "●"
	case StatusDone:
		return style.Check
	case StatusError:
		return style.Cross
	default:
		return "○"
	}
}

func taskStyle(task *TaskNode) lipgloss.Style {
	if task.Cached {
		return taskCachedStyle
	}

	switch task.Status {
	case StatusRunning:
		return taskRunningStyle
	case StatusDone:
		return taskDoneStyle
	case StatusError:
		return taskErrorStyle
	default:
		return taskPendingStyle
	}
}

func (m *Model) logPane() string {
	node, ok := m.TaskMap[m.ActiveTaskName]
	if !ok {
		return logStyle.Render(titleStyle.Render("LOGS (Waiting...)"))
	}

	mode := " (Following)"
	if !m.FollowMode {
		mode = " (Manual)"
	}
	header := titleStyle.Render("LOGS: " + node.Name + mode)
	if node.Err != nil {
		header = failureTitleStyle.Render("LOGS: " + node.Name + ": " + node.Err.Error())
	}

	return logStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, node.Term.View()))
}

func (m *Model) failed() bool {
	for _, t := range m.Tasks {
		if t.Status == StatusError {
			return true
		}
	}
	return false
}
