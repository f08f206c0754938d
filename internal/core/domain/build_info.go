package domain

import "time"

// BuildInfo records the hashes of the last successful execution of a task.
// It only lets the scheduler skip work; deleting it forces re-execution.
type BuildInfo struct {
	TaskName   string    `json:"task_name,omitzero"`
	InputHash  string    `json:"input_hash,omitzero"`
	OutputHash string    `json:"output_hash,omitzero"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}
