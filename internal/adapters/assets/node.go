package assets

import (
	"context"

	"github.com/grindlemire/graft"
	lfs "go.trai.ch/lathe/internal/adapters/fs"
	"go.trai.ch/lathe/internal/core/ports"
)

const (
	// MinifierNodeID is the graft node ID for the shared minifier.
	MinifierNodeID graft.ID = "adapter.assets.minifier"
	// BundlerNodeID is the graft node ID for the bundle executor.
	BundlerNodeID graft.ID = "adapter.assets.bundler"
	// MinifyNodeID is the graft node ID for the minify executor.
	MinifyNodeID graft.ID = "adapter.assets.minify"
	// SyncNodeID is the graft node ID for the sync executor.
	SyncNodeID graft.ID = "adapter.assets.sync"
)

func init() {
	graft.Register(graft.Node[*Minifier]{
		ID:        MinifierNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Minifier, error) {
			return NewMinifier(), nil
		},
	})

	graft.Register(graft.Node[*Bundler]{
		ID:        BundlerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{MinifierNodeID},
		Run: func(ctx context.Context) (*Bundler, error) {
			minifier, err := graft.Dep[*Minifier](ctx)
			if err != nil {
				return nil, err
			}
			return NewBundler(minifier), nil
		},
	})

	graft.Register(graft.Node[*MinifyExecutor]{
		ID:        MinifyNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{lfs.ResolverNodeID, MinifierNodeID},
		Run: func(ctx context.Context) (*MinifyExecutor, error) {
			resolver, err := graft.Dep[ports.InputResolver](ctx)
			if err != nil {
				return nil, err
			}
			minifier, err := graft.Dep[*Minifier](ctx)
			if err != nil {
				return nil, err
			}
			return NewMinifyExecutor(resolver, minifier), nil
		},
	})

	graft.Register(graft.Node[*Syncer]{
		ID:        SyncNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{lfs.ResolverNodeID, lfs.WalkerNodeID},
		Run: func(ctx context.Context) (*Syncer, error) {
			resolver, err := graft.Dep[ports.InputResolver](ctx)
			if err != nil {
				return nil, err
			}
			walker, err := graft.Dep[*lfs.Walker](ctx)
			if err != nil {
				return nil, err
			}
			return NewSyncer(resolver, walker), nil
		},
	})
}
