// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/lathe/internal/adapters/assets"
	_ "go.trai.ch/lathe/internal/adapters/cas"
	_ "go.trai.ch/lathe/internal/adapters/config"
	_ "go.trai.ch/lathe/internal/adapters/fs"
	_ "go.trai.ch/lathe/internal/adapters/generator"
	_ "go.trai.ch/lathe/internal/adapters/logger"
	_ "go.trai.ch/lathe/internal/adapters/metrics"
	_ "go.trai.ch/lathe/internal/adapters/shell"
	_ "go.trai.ch/lathe/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/lathe/internal/app"
	_ "go.trai.ch/lathe/internal/engine/dispatch"
)
