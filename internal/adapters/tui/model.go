package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	taskListWidthRatio = 0.3
	logPaneBorderWidth = 4
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// StatusPending indicates the task is waiting to start.
	StatusPending TaskStatus = "Pending"
	// StatusRunning indicates the task is currently executing.
	StatusRunning TaskStatus = "Running"
	// StatusDone indicates the task completed successfully.
	StatusDone TaskStatus = "Done"
	// StatusError indicates the task failed.
	StatusError TaskStatus = "Error"
)

// TaskNode is one task in the list. Its terminal holds the output of the latest run.
type TaskNode struct {
	Name     string
	Status   TaskStatus
	Cached   bool
	Err      error
	Started  time.Time
	Duration time.Duration
	Term     *Vterm
}

// Model is the state of the interactive task view. Serve mode plans a run per
// change batch; tasks keep their row across runs and only their state resets.
type Model struct {
	Tasks   []*TaskNode
	TaskMap map[string]*TaskNode
	SpanMap map[string]*TaskNode
	Targets []string
	Runs    int

	ActiveTaskName string
	SelectedIdx    int
	ListOffset     int
	ListHeight     int
	LogWidth       int
	LogHeight      int
	FollowMode     bool

	// Interrupted is set when the user quit before the run finished.
	Interrupted bool
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
//
//nolint:cyclop // message dispatch
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case MsgPlan:
		m.plan(msg)

	case MsgTaskStart:
		node, ok := m.TaskMap[msg.Name]
		if !ok {
			break
		}
		node.Status = StatusRunning
		node.Started = msg.StartTime
		m.SpanMap[msg.SpanID] = node
		if m.FollowMode {
			m.selectTask(msg.Name)
		}

	case MsgTaskLog:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			_, _ = node.Term.Write(msg.Data)
		}

	case MsgTaskComplete:
		node, ok := m.SpanMap[msg.SpanID]
		if !ok {
			break
		}
		delete(m.SpanMap, msg.SpanID)
		node.Cached = msg.Cached
		node.Err = msg.Err
		if !node.Started.IsZero() {
			node.Duration = msg.EndTime.Sub(node.Started)
		}
		if msg.Err != nil {
			node.Status = StatusError
		} else {
			node.Status = StatusDone
		}
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		m.Interrupted = true
		return tea.Quit
	case "k", "up":
		if m.SelectedIdx > 0 {
			m.SelectedIdx--
			m.FollowMode = false
			m.updateActiveView()
		}
	case "j", "down":
		if m.SelectedIdx < len(m.Tasks)-1 {
			m.SelectedIdx++
			m.FollowMode = false
			m.updateActiveView()
		}
	case "esc":
		m.FollowMode = true
		for _, t := range m.Tasks {
			if t.Status == StatusRunning {
				m.selectTask(t.Name)
				break
			}
		}
	default:
		if node := m.selectedTask(); node != nil && node.Term.Scroll(key) {
			m.FollowMode = false
		}
	}
	return nil
}

func (m *Model) resize(width, height int) {
	listWidth := int(float64(width) * taskListWidthRatio)
	m.LogWidth = width - listWidth - logPaneBorderWidth
	m.LogHeight = height - lipgloss.Height(titleStyle.Render("LOGS"))
	m.ListHeight = height - lipgloss.Height(titleStyle.Render("TASKS")+"\n\n")

	for _, node := range m.Tasks {
		node.Term.Resize(m.LogWidth, m.LogHeight)
	}
	m.updateActiveView()
}

// plan adds unseen tasks and resets the planned ones for a new run.
func (m *Model) plan(msg MsgPlan) {
	m.Runs++
	m.Targets = msg.Targets
	m.SpanMap = make(map[string]*TaskNode)

	for _, name := range msg.Tasks {
		term := NewVterm()
		if m.LogWidth > 0 && m.LogHeight > 0 {
			term.Resize(m.LogWidth, m.LogHeight)
		}

		node, ok := m.TaskMap[name]
		if !ok {
			node = &TaskNode{Name: name}
			m.TaskMap[name] = node
			m.Tasks = append(m.Tasks, node)
		}
		node.Status = StatusPending
		node.Cached = false
		node.Err = nil
		node.Started = time.Time{}
		node.Duration = 0
		node.Term = term
	}
	m.updateActiveView()
}

func (m *Model) selectTask(name string) {
	for i, t := range m.Tasks {
		if t.Name == name {
			m.SelectedIdx = i
			break
		}
	}
	m.updateActiveView()
}

func (m *Model) selectedTask() *TaskNode {
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(m.Tasks) {
		return m.Tasks[m.SelectedIdx]
	}
	return nil
}

func (m *Model) updateActiveView() {
	m.ensureVisible()
	node := m.selectedTask()
	if node == nil {
		return
	}
	m.ActiveTaskName = node.Name
	if m.FollowMode {
		node.Term.ScrollToBottom()
	}
}

func (m *Model) ensureVisible() {
	if m.ListHeight <= 0 {
		return
	}
	if m.SelectedIdx < m.ListOffset {
		m.ListOffset = m.SelectedIdx
	} else if m.SelectedIdx >= m.ListOffset+m.ListHeight {
		m.ListOffset = m.SelectedIdx - m.ListHeight + 1
	}
}
