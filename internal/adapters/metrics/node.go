package metrics

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/lathe/internal/build"
)

// NodeID is the unique identifier for the metrics Graft node.
const NodeID graft.ID = "adapter.metrics"

func init() {
	graft.Register(graft.Node[*Recorder]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Recorder, error) {
			return NewRecorder(build.Version), nil
		},
	})
}
