package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/metrics"
	"go.trai.ch/lathe/internal/core/domain"
)

func TestRecorder_Collectors(t *testing.T) {
	r := metrics.NewRecorder("1.2.3")

	r.TaskFinished("sass", metrics.OutcomeSuccess, 200*time.Millisecond)
	r.TaskFinished("sass", metrics.OutcomeCached, 0)
	r.TaskFinished("jshint", metrics.OutcomeFailed, time.Second)
	r.WatchBatch(2)
	r.WatchBatch(1)
	r.PreviewUp(true)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := domain.NewBuildRun("01J", domain.ModeWatch, []string{"sass", "jshint"}, start)
	run.Executed = []string{"sass", "jshint"}
	run.Failed = []string{"jshint"}
	run.Finish(start.Add(time.Second))
	r.RunFinished(run)

	expected := `
# HELP lathe_tasks_total Task outcomes by task and outcome.
# TYPE lathe_tasks_total counter
lathe_tasks_total{outcome="cached",task="sass"} 1
lathe_tasks_total{outcome="failed",task="jshint"} 1
lathe_tasks_total{outcome="success",task="sass"} 1
# HELP lathe_runs_total Build runs by mode and status.
# TYPE lathe_runs_total counter
lathe_runs_total{mode="watch",status="partial-failure"} 1
# HELP lathe_watch_batches_total Debounced watch batches that triggered a run.
# TYPE lathe_watch_batches_total counter
lathe_watch_batches_total 2
# HELP lathe_watch_triggered_tasks_total Tasks triggered by watch batches.
# TYPE lathe_watch_triggered_tasks_total counter
lathe_watch_triggered_tasks_total 3
# HELP lathe_preview_up Whether the preview server answered its last probe.
# TYPE lathe_preview_up gauge
lathe_preview_up 1
# HELP lathe_build_info Build information of the running binary.
# TYPE lathe_build_info gauge
lathe_build_info{version="1.2.3"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"lathe_tasks_total", "lathe_runs_total", "lathe_watch_batches_total",
		"lathe_watch_triggered_tasks_total", "lathe_preview_up", "lathe_build_info"))

	// Cached outcomes do not observe a duration.
	durations, err := testutil.GatherAndCount(r.Registry(), "lathe_task_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, durations)

	r.PreviewUp(false)
	count, err := testutil.GatherAndCount(r.Registry(), "lathe_preview_up")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecorder_Handler(t *testing.T) {
	r := metrics.NewRecorder("dev")
	r.TaskFinished("uglify", metrics.OutcomeSuccess, time.Millisecond)
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	t.Run("metrics", func(t *testing.T) {
		body := get(t, srv.URL+"/metrics")
		assert.Contains(t, body, `lathe_tasks_total{outcome="success",task="uglify"} 1`)
	})

	t.Run("healthz", func(t *testing.T) {
		assert.Equal(t, "ok\n", get(t, srv.URL+"/healthz"))
	})
}

func TestRecorder_Serve(t *testing.T) {
	t.Run("stops with the context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- metrics.NewRecorder("dev").Serve(ctx, "127.0.0.1:0") }()

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("bad address", func(t *testing.T) {
		err := metrics.NewRecorder("dev").Serve(context.Background(), "256.0.0.1:bad")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to listen for metrics")
	})
}

func get(t *testing.T, url string) string {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
