package tui

import "time"

// MsgPlan announces the tasks of a new run.
type MsgPlan struct {
	Tasks        []string
	Dependencies map[string][]string
	Targets      []string
}

// MsgTaskStart reports that a task began executing.
type MsgTaskStart struct {
	SpanID    string
	ParentID  string
	Name      string
	StartTime time.Time
}

// MsgTaskLog carries a chunk of task output.
type MsgTaskLog struct {
	SpanID string
	Data   []byte
}

// MsgTaskComplete reports the outcome of a task.
type MsgTaskComplete struct {
	SpanID  string
	EndTime time.Time
	Err     error
	Cached  bool
}
