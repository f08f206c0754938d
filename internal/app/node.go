package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/lathe/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/lathe/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/lathe/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/lathe/internal/adapters/generator" //nolint:depguard // Wired in app layer
	"go.trai.ch/lathe/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/lathe/internal/adapters/metrics"   //nolint:depguard // Wired in app layer
	"go.trai.ch/lathe/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/lathe/internal/engine/dispatch"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			dispatch.NodeID,
			logger.NodeID,
			cas.NodeID,
			fs.HasherNodeID,
			fs.ResolverNodeID,
			metrics.NodeID,
			watcher.NodeID,
			generator.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{App: app, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	executor, err := graft.Dep[*dispatch.Dispatcher](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.BuildInfoStore](ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := graft.Dep[ports.Hasher](ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := graft.Dep[ports.InputResolver](ctx)
	if err != nil {
		return nil, err
	}

	recorder, err := graft.Dep[*metrics.Recorder](ctx)
	if err != nil {
		return nil, err
	}

	watchers, err := graft.Dep[ports.WatcherFactory](ctx)
	if err != nil {
		return nil, err
	}

	generators, err := graft.Dep[ports.SiteGeneratorFactory](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, executor, log, store, hasher, resolver, recorder, watchers, generators), nil
}
