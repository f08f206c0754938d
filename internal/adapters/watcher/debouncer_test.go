package watcher_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/watcher"
)

type batches struct {
	mu  sync.Mutex
	got [][]string
}

func (b *batches) record(paths []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, paths)
}

func (b *batches) all() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.got
}

func TestDebouncer_CoalescesWindow(t *testing.T) {
	tests := []struct {
		name string
		adds []string
		want []string
	}{
		{
			name: "single path",
			adds: []string{"/site/scss/main.scss"},
			want: []string{"/site/scss/main.scss"},
		},
		{
			name: "several paths sorted",
			adds: []string{"/site/scripts/nav.js", "/site/scss/main.scss", "/site/images/logo.svg"},
			want: []string{"/site/images/logo.svg", "/site/scripts/nav.js", "/site/scss/main.scss"},
		},
		{
			name: "duplicates collapse",
			adds: []string{"/site/scss/main.scss", "/site/scss/main.scss", "/site/scss/main.scss"},
			want: []string{"/site/scss/main.scss"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				var b batches
				d := watcher.NewDebouncer(100*time.Millisecond, b.record)

				for _, path := range tt.adds {
					d.Add(path)
				}

				time.Sleep(150 * time.Millisecond)
				synctest.Wait()

				require.Len(t, b.all(), 1)
				assert.Equal(t, tt.want, b.all()[0])
			})
		})
	}
}

func TestDebouncer_AddRestartsWindow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(100*time.Millisecond, b.record)

		d.Add("/site/scss/a.scss")
		time.Sleep(60 * time.Millisecond)
		d.Add("/site/scss/b.scss")
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, b.all())

		time.Sleep(50 * time.Millisecond)
		synctest.Wait()
		require.Len(t, b.all(), 1)
		assert.Equal(t, []string{"/site/scss/a.scss", "/site/scss/b.scss"}, b.all()[0])
	})
}

func TestDebouncer_SeparateWindowsSeparateBatches(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(100*time.Millisecond, b.record)

		d.Add("/site/scss/a.scss")
		time.Sleep(150 * time.Millisecond)
		d.Add("/site/scripts/nav.js")
		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, [][]string{{"/site/scss/a.scss"}, {"/site/scripts/nav.js"}}, b.all())
	})
}

func TestDebouncer_Flush(t *testing.T) {
	t.Run("delivers pending immediately", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			var b batches
			d := watcher.NewDebouncer(100*time.Millisecond, b.record)

			d.Add("/site/scss/a.scss")
			d.Flush()
			require.Len(t, b.all(), 1)

			time.Sleep(150 * time.Millisecond)
			synctest.Wait()
			assert.Len(t, b.all(), 1)
		})
	})

	t.Run("nothing pending", func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(100*time.Millisecond, b.record)
		d.Flush()
		assert.Empty(t, b.all())
	})

	t.Run("after the timer fired", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			var b batches
			d := watcher.NewDebouncer(50*time.Millisecond, b.record)

			d.Add("/site/scss/a.scss")
			time.Sleep(100 * time.Millisecond)
			synctest.Wait()
			d.Flush()

			assert.Len(t, b.all(), 1)
		})
	})
}

func TestDebouncer_Stop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var b batches
		d := watcher.NewDebouncer(100*time.Millisecond, b.record)

		d.Add("/site/scss/a.scss")
		d.Stop()
		d.Stop()
		d.Add("/site/scss/b.scss")

		time.Sleep(200 * time.Millisecond)
		synctest.Wait()
		d.Flush()

		assert.Empty(t, b.all())
	})
}

func TestDebouncer_NilCallback(t *testing.T) {
	synctest.Test(t, func(_ *testing.T) {
		d := watcher.NewDebouncer(50*time.Millisecond, nil)
		d.Add("/site/scss/a.scss")
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
		d.Flush()
	})
}
