package generator_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/generator"
	"go.trai.ch/lathe/internal/core/domain"
)

// syncBuffer is a bytes.Buffer safe for the copy goroutine of os/exec.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestGenerator_Generate(t *testing.T) {
	root := t.TempDir()

	t.Run("success", func(t *testing.T) {
		g := generator.New(domain.Generator{Build: []string{"sh", "-c", "pwd; echo built $JEKYLL_ENV"}}, root)
		var stdout bytes.Buffer
		require.NoError(t, g.Generate(context.Background(), []string{"JEKYLL_ENV=production"}, &stdout, &stdout))
		assert.Contains(t, stdout.String(), "built production")
	})

	t.Run("failure", func(t *testing.T) {
		g := generator.New(domain.Generator{Build: []string{"sh", "-c", "exit 3"}}, root)
		err := g.Generate(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "site generation failed")
	})

	t.Run("not configured", func(t *testing.T) {
		err := generator.New(domain.Generator{}, root).Generate(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})
		require.ErrorIs(t, err, domain.ErrGeneratorNotConfigured)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		g := generator.New(domain.Generator{Build: []string{"sleep", "30"}}, root)

		start := time.Now()
		err := g.Generate(ctx, nil, &bytes.Buffer{}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestGenerator_Serve(t *testing.T) {
	root := t.TempDir()

	t.Run("graceful stop", func(t *testing.T) {
		g := generator.New(domain.Generator{Serve: []string{"sh", "-c", "sleep 30"}}, root)
		proc, err := g.Serve(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)

		require.NoError(t, proc.Stop(5*time.Second))
		<-proc.Done()
		require.NoError(t, proc.Stop(5*time.Second), "Stop is idempotent")
	})

	t.Run("forced stop", func(t *testing.T) {
		var stdout syncBuffer
		g := generator.New(domain.Generator{Serve: []string{"sh", "-c", "trap '' TERM; echo ready; sleep 30"}}, root)
		proc, err := g.Serve(context.Background(), nil, &stdout, &stdout)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return stdout.String() == "ready\n" }, 5*time.Second, 10*time.Millisecond)

		err = proc.Stop(100 * time.Millisecond)
		require.ErrorIs(t, err, domain.ErrForcedShutdown)
		select {
		case <-proc.Done():
		default:
			t.Fatal("process must have exited")
		}
	})

	t.Run("exits on its own", func(t *testing.T) {
		g := generator.New(domain.Generator{Serve: []string{"sh", "-c", "exit 4"}}, root)
		proc, err := g.Serve(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)

		<-proc.Done()
		require.Error(t, proc.Err())
		require.NoError(t, proc.Stop(time.Second))
	})

	t.Run("missing command", func(t *testing.T) {
		g := generator.New(domain.Generator{Serve: []string{"lathe-no-such-generator"}}, root)
		_, err := g.Serve(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), domain.ErrPreviewFailed.Error())
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := generator.New(domain.Generator{}, root).Serve(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})
		require.ErrorIs(t, err, domain.ErrGeneratorNotConfigured)
	})
}

func TestGenerator_Probe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	g := generator.New(domain.Generator{URL: srv.URL}, t.TempDir())
	require.NoError(t, g.Probe(context.Background()))

	status.Store(http.StatusNotFound)
	require.NoError(t, g.Probe(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	require.Error(t, g.Probe(context.Background()))

	srv.Close()
	require.Error(t, g.Probe(context.Background()))

	err := generator.New(domain.Generator{}, t.TempDir()).Probe(context.Background())
	require.ErrorIs(t, err, domain.ErrGeneratorNotConfigured)
}

func TestNewFactory(t *testing.T) {
	g := generator.NewFactory()(domain.Generator{URL: "http://127.0.0.1:4000/"}, t.TempDir())
	assert.IsType(t, &generator.Generator{}, g)
}
