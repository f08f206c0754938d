// Package trigger turns file system changes into ordered batches of tasks to re-run.
package trigger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.trai.ch/lathe/internal/adapters/watcher" //nolint:depguard // debouncing only
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

// Options configure a Trigger.
type Options struct {
	// Root is the watched pipeline root. Rule globs match paths relative to it.
	Root string
	// Graph orders every batch.
	Graph *domain.Graph
	// Debounce is the coalescing window. Zero means domain.DefaultDebounce.
	Debounce time.Duration
}

// Trigger watches the pipeline root and reports the tasks affected by each batch of changes.
type Trigger struct {
	factory ports.WatcherFactory
	logger  ports.Logger
	metrics ports.Metrics
	opts    Options

	debouncer *watcher.Debouncer
	errCh     chan error
	wg        sync.WaitGroup

	mu      sync.Mutex
	watcher ports.Watcher
	cancel  context.CancelFunc
	stopped bool

	stopOnce sync.Once
	stopErr  error
}

// New creates a Trigger.
func New(factory ports.WatcherFactory, logger ports.Logger, metrics ports.Metrics, opts Options) *Trigger {
	if opts.Debounce <= 0 {
		opts.Debounce = domain.DefaultDebounce
	}
	return &Trigger{
		factory: factory,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		errCh:   make(chan error, 1),
	}
}

// Start begins watching. onBatch is called once per non-empty batch with the
// triggered tasks in graph order; it runs on the debounce timer's goroutine.
func (t *Trigger) Start(ctx context.Context, rules []domain.WatchRule, onBatch func(tasks []string)) error {
	ctx, cancel := context.WithCancel(ctx)

	w, err := t.open(ctx)
	if err != nil {
		cancel()
		return err
	}

	t.debouncer = watcher.NewDebouncer(t.opts.Debounce, func(paths []string) {
		t.dispatch(rules, paths, onBatch)
	})

	t.mu.Lock()
	t.watcher = w
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx, w)
	return nil
}

// Stop cancels the pending debounce window and closes the watcher. It is idempotent.
func (t *Trigger) Stop() error {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		w, cancel := t.watcher, t.cancel
		t.mu.Unlock()

		if t.debouncer != nil {
			t.debouncer.Stop()
		}
		if cancel != nil {
			cancel()
		}
		if w != nil {
			t.stopErr = w.Stop()
		}
		t.wg.Wait()
	})
	return t.stopErr
}

// Err delivers the error that ended watching after the restart failed.
func (t *Trigger) Err() <-chan error {
	return t.errCh
}

func (t *Trigger) open(ctx context.Context) (ports.Watcher, error) {
	w, err := t.factory()
	if err != nil {
		return nil, t.watchFailed(err)
	}
	if err := w.Start(ctx, t.opts.Root); err != nil {
		_ = w.Stop()
		return nil, t.watchFailed(err)
	}
	return w, nil
}

// run consumes events until the trigger stops. A failed watcher is replaced;
// a replacement that fails before delivering any event ends watching.
func (t *Trigger) run(ctx context.Context, w ports.Watcher) {
	defer t.wg.Done()

	restarted := false
	for {
		if t.consume(w) {
			restarted = false
		}
		_ = w.Stop()
		if ctx.Err() != nil || t.isStopped() {
			return
		}

		cause := w.Err()
		if cause == nil {
			cause = zerr.New("event stream closed")
		}
		if restarted {
			t.fail(t.watchFailed(cause))
			return
		}
		restarted = true
		t.logger.Warn(fmt.Sprintf("file watcher failed, restarting: %v", cause))

		next, err := t.open(ctx)
		if err != nil {
			t.fail(err)
			return
		}
		if !t.replace(next) {
			_ = next.Stop()
			return
		}
		w = next
	}
}

// consume feeds events to the debouncer and reports whether any arrived.
func (t *Trigger) consume(w ports.Watcher) bool {
	delivered := false
	for event := range w.Events() {
		delivered = true
		rel, err := filepath.Rel(t.opts.Root, event.Path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		t.debouncer.Add(filepath.ToSlash(rel))
	}
	return delivered
}

func (t *Trigger) dispatch(rules []domain.WatchRule, paths []string, onBatch func([]string)) {
	tasks := t.opts.Graph.Sort(domain.TriggeredTasks(rules, paths))
	if len(tasks) == 0 {
		return
	}
	t.metrics.WatchBatch(len(tasks))
	t.logger.Info(fmt.Sprintf("%d path(s) changed, re-running %s", len(paths), strings.Join(tasks, ", ")))
	onBatch(tasks)
}

func (t *Trigger) replace(w ports.Watcher) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.watcher = w
	return true
}

func (t *Trigger) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Trigger) fail(err error) {
	select {
	case t.errCh <- err:
	default:
	}
}

func (t *Trigger) watchFailed(cause error) error {
	err := domain.Annotate(domain.ErrWatchFailed, "root", t.opts.Root)
	return zerr.With(err, "cause", cause.Error())
}
