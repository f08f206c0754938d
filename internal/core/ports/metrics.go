package ports

import (
	"time"

	"go.trai.ch/lathe/internal/core/domain"
)

// Metrics records pipeline activity.
//
//go:generate mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// TaskFinished records one task outcome: "success", "cached", "failed" or "skipped".
	TaskFinished(task, outcome string, elapsed time.Duration)

	// RunFinished records a completed build run.
	RunFinished(run *domain.BuildRun)

	// WatchBatch records a watch batch and the number of tasks it triggered.
	WatchBatch(tasks int)

	// PreviewUp records the liveness of the preview server.
	PreviewUp(up bool)
}
