package trigger_test

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/lathe/internal/core/ports/mocks"
	"go.trai.ch/lathe/internal/engine/trigger"
	"go.uber.org/mock/gomock"
)

const root = "/site"

// fakeWatcher is a MockWatcher whose events are fed by the test.
type fakeWatcher struct {
	*mocks.MockWatcher
	events chan ports.WatchEvent

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func newFakeWatcher(ctrl *gomock.Controller) *fakeWatcher {
	w := &fakeWatcher{
		MockWatcher: mocks.NewMockWatcher(ctrl),
		events:      make(chan ports.WatchEvent, 16),
	}
	w.EXPECT().Start(gomock.Any(), root).Return(nil).AnyTimes()
	w.EXPECT().Events().DoAndReturn(func() iter.Seq[ports.WatchEvent] {
		return func(yield func(ports.WatchEvent) bool) {
			for ev := range w.events {
				if !yield(ev) {
					return
				}
			}
		}
	}).AnyTimes()
	w.EXPECT().Stop().DoAndReturn(func() error {
		w.end(nil)
		return nil
	}).AnyTimes()
	w.EXPECT().Err().DoAndReturn(func() error {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.err
	}).AnyTimes()
	return w
}

func (w *fakeWatcher) write(path string) {
	w.events <- ports.WatchEvent{Path: path, Operation: ports.OpWrite}
}

// end closes the event stream, recording err as its cause.
func (w *fakeWatcher) end(err error) {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
		close(w.events)
	})
}

type triggerTestMocks struct {
	logger  *mocks.MockLogger
	metrics *mocks.MockMetrics
}

func sitePipeline(t *testing.T) (*domain.Graph, []domain.WatchRule) {
	t.Helper()
	reg := domain.NewRegistry()
	for _, name := range []string{"sass", "postcss", "uglify"} {
		require.NoError(t, reg.Register(&domain.Task{Name: domain.NewInternedString(name), Kind: domain.KindExec}))
	}
	g, err := domain.BuildGraph(reg, []domain.Hint{{Before: "sass", After: "postcss"}})
	require.NoError(t, err)

	rules := []domain.WatchRule{
		{ID: "styles", Files: []string{"_sass/**/*.scss"}, Tasks: domain.NewInternedStrings([]string{"postcss", "sass"})},
		{ID: "scripts", Files: []string{"scripts/*.js"}, Tasks: domain.NewInternedStrings([]string{"uglify"})},
	}
	return g, rules
}

func setupTrigger(t *testing.T, factory ports.WatcherFactory) (*trigger.Trigger, []domain.WatchRule, triggerTestMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := triggerTestMocks{
		logger:  mocks.NewMockLogger(ctrl),
		metrics: mocks.NewMockMetrics(ctrl),
	}
	g, rules := sitePipeline(t)
	tr := trigger.New(factory, m.logger, m.metrics, trigger.Options{Root: root, Graph: g})
	return tr, rules, m
}

// batchRecorder collects onBatch calls.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *batchRecorder) record(tasks []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, tasks)
}

func (r *batchRecorder) get() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

func TestTrigger_Batches(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		w := newFakeWatcher(ctrl)
		tr, rules, m := setupTrigger(t, func() (ports.Watcher, error) { return w, nil })

		m.metrics.EXPECT().WatchBatch(2)
		m.metrics.EXPECT().WatchBatch(1)
		m.logger.EXPECT().Info(gomock.Any()).Times(2)

		var rec batchRecorder
		require.NoError(t, tr.Start(t.Context(), rules, rec.record))

		w.write(root + "/_sass/main.scss")
		time.Sleep(50 * time.Millisecond)
		w.write(root + "/_sass/_variables.scss")
		w.write(root + "/README.md")
		synctest.Wait()
		assert.Empty(t, rec.get(), "window restarts on every event")

		time.Sleep(domain.DefaultDebounce)
		synctest.Wait()
		assert.Equal(t, [][]string{{"sass", "postcss"}}, rec.get())

		w.write(root + "/scripts/nav.js")
		time.Sleep(domain.DefaultDebounce)
		synctest.Wait()
		assert.Equal(t, [][]string{{"sass", "postcss"}, {"uglify"}}, rec.get())

		require.NoError(t, tr.Stop())
	})
}

func TestTrigger_DropsEmptyBatches(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		w := newFakeWatcher(ctrl)
		tr, rules, _ := setupTrigger(t, func() (ports.Watcher, error) { return w, nil })

		var rec batchRecorder
		require.NoError(t, tr.Start(t.Context(), rules, rec.record))

		w.write(root + "/_config.yml")
		w.write("/elsewhere/_sass/main.scss")
		w.write(root)
		time.Sleep(time.Second)
		synctest.Wait()

		assert.Empty(t, rec.get())
		require.NoError(t, tr.Stop())
	})
}

func TestTrigger_StopCancelsPendingWindow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		w := newFakeWatcher(ctrl)
		tr, rules, _ := setupTrigger(t, func() (ports.Watcher, error) { return w, nil })

		var rec batchRecorder
		require.NoError(t, tr.Start(t.Context(), rules, rec.record))

		w.write(root + "/_sass/main.scss")
		synctest.Wait()
		require.NoError(t, tr.Stop())
		require.NoError(t, tr.Stop())

		time.Sleep(time.Second)
		synctest.Wait()
		assert.Empty(t, rec.get())
	})
}

func TestTrigger_RestartsAfterEachFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		first, second, third := newFakeWatcher(ctrl), newFakeWatcher(ctrl), newFakeWatcher(ctrl)
		watchers := []*fakeWatcher{first, second, third}
		var opened atomic.Int32
		factory := func() (ports.Watcher, error) {
			n := opened.Add(1)
			if int(n) > len(watchers) {
				return nil, errors.New("too many open files")
			}
			return watchers[n-1], nil
		}
		tr, rules, m := setupTrigger(t, factory)

		m.logger.EXPECT().Warn(gomock.Any()).Times(2)
		m.logger.EXPECT().Info(gomock.Any())
		m.metrics.EXPECT().WatchBatch(1)

		var rec batchRecorder
		require.NoError(t, tr.Start(t.Context(), rules, rec.record))

		first.end(errors.New("queue overflow"))
		synctest.Wait()
		assert.Equal(t, int32(2), opened.Load())

		second.write(root + "/scripts/nav.js")
		time.Sleep(domain.DefaultDebounce)
		synctest.Wait()
		assert.Equal(t, [][]string{{"uglify"}}, rec.get())

		second.end(errors.New("queue overflow"))
		synctest.Wait()
		assert.Equal(t, int32(3), opened.Load(), "a replacement that delivered events is replaced again")

		select {
		case err := <-tr.Err():
			t.Fatalf("unexpected watch error: %v", err)
		default:
		}

		third.end(errors.New("queue overflow"))
		synctest.Wait()

		select {
		case err := <-tr.Err():
			require.ErrorIs(t, err, domain.ErrWatchFailed)
			assert.Contains(t, err.Error(), domain.ErrWatchFailed.Error())
		default:
			t.Fatal("expected a watch error")
		}
		assert.Equal(t, int32(3), opened.Load(), "a replacement that failed without events is not replaced")
		require.NoError(t, tr.Stop())
	})
}

func TestTrigger_RestartFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		w := newFakeWatcher(ctrl)
		calls := 0
		factory := func() (ports.Watcher, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("inotify instance limit reached")
			}
			return w, nil
		}
		tr, rules, m := setupTrigger(t, factory)
		m.logger.EXPECT().Warn(gomock.Any())

		require.NoError(t, tr.Start(t.Context(), rules, func([]string) {}))
		w.end(errors.New("queue overflow"))
		synctest.Wait()

		select {
		case err := <-tr.Err():
			require.ErrorIs(t, err, domain.ErrWatchFailed)
		default:
			t.Fatal("expected a watch error")
		}
		require.NoError(t, tr.Stop())
	})
}

func TestTrigger_StartFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	w := mocks.NewMockWatcher(ctrl)
	w.EXPECT().Start(gomock.Any(), root).Return(errors.New("permission denied"))
	w.EXPECT().Stop().Return(nil)

	tr, rules, _ := setupTrigger(t, func() (ports.Watcher, error) { return w, nil })

	err := tr.Start(context.Background(), rules, func([]string) {})
	require.ErrorIs(t, err, domain.ErrWatchFailed)
	require.NoError(t, tr.Stop())
}
