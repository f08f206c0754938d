package dispatch

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/lathe/internal/adapters/assets"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/lathe/internal/adapters/generator" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/lathe/internal/adapters/shell"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
)

// NodeID is the unique identifier for the dispatcher Graft node.
const NodeID graft.ID = "engine.dispatch"

func init() {
	graft.Register(graft.Node[*Dispatcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			assets.BundlerNodeID,
			assets.MinifyNodeID,
			assets.SyncNodeID,
			generator.NodeID,
		},
		Run: func(ctx context.Context) (*Dispatcher, error) {
			execExecutor, err := graft.Dep[*shell.Executor](ctx)
			if err != nil {
				return nil, err
			}

			bundler, err := graft.Dep[*assets.Bundler](ctx)
			if err != nil {
				return nil, err
			}

			minify, err := graft.Dep[*assets.MinifyExecutor](ctx)
			if err != nil {
				return nil, err
			}

			syncer, err := graft.Dep[*assets.Syncer](ctx)
			if err != nil {
				return nil, err
			}

			factory, err := graft.Dep[ports.SiteGeneratorFactory](ctx)
			if err != nil {
				return nil, err
			}

			return New(map[domain.TaskKind]ports.Executor{
				domain.KindExec:     execExecutor,
				domain.KindBundle:   bundler,
				domain.KindMinify:   minify,
				domain.KindSync:     syncer,
				domain.KindGenerate: NewGenerateExecutor(factory),
			}), nil
		},
	})
}
