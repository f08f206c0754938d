package watcher

import (
	"context"

	"github.com/grindlemire/graft"
	lfs "go.trai.ch/lathe/internal/adapters/fs"
	"go.trai.ch/lathe/internal/core/ports"
)

// NodeID is the unique identifier for the watcher factory Graft node.
const NodeID graft.ID = "adapter.watcher"

func init() {
	graft.Register(graft.Node[ports.WatcherFactory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{lfs.WalkerNodeID},
		Run: func(ctx context.Context) (ports.WatcherFactory, error) {
			walker, err := graft.Dep[*lfs.Walker](ctx)
			if err != nil {
				return nil, err
			}
			return NewFactory(walker), nil
		},
	})
}

// NewFactory returns a factory producing fresh fsnotify watchers over walker.
func NewFactory(walker *lfs.Walker) ports.WatcherFactory {
	return func() (ports.Watcher, error) {
		return NewWatcher(walker)
	}
}
