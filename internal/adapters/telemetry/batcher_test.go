package telemetry_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lathe/internal/adapters/telemetry"
)

type collector struct {
	mu   sync.Mutex
	data []byte
}

func (c *collector) add(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(c.data, data...)
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.data)
}

func TestBatchProcessor_FlushOnSize(t *testing.T) {
	var c collector
	bp := telemetry.NewBatchProcessor(5, time.Hour, c.add)
	defer func() { _ = bp.Close() }()

	_, err := bp.Write([]byte("123"))
	require.NoError(t, err)
	assert.Empty(t, c.String())

	_, err = bp.Write([]byte("456"))
	require.NoError(t, err)
	assert.Equal(t, "123456", c.String())
}

func TestBatchProcessor_FlushOnTime(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var c collector
		bp := telemetry.NewBatchProcessor(100, 50*time.Millisecond, c.add)
		defer func() { _ = bp.Close() }()

		_, err := bp.Write([]byte("test"))
		require.NoError(t, err)
		assert.Empty(t, c.String())

		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, "test", c.String())
	})
}

func TestBatchProcessor_ManualFlush(t *testing.T) {
	var c collector
	bp := telemetry.NewBatchProcessor(100, time.Hour, c.add)
	defer func() { _ = bp.Close() }()

	_, err := bp.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Empty(t, c.String())

	bp.Flush()
	assert.Equal(t, "hello", c.String())
}

func TestBatchProcessor_CloseFlushes(t *testing.T) {
	var c collector
	bp := telemetry.NewBatchProcessor(100, time.Hour, c.add)

	_, err := bp.Write([]byte("pending"))
	require.NoError(t, err)

	require.NoError(t, bp.Close())
	assert.Equal(t, "pending", c.String())
	require.NoError(t, bp.Close())

	_, err = bp.Write([]byte("fail"))
	assert.Error(t, err)
}

func TestBatchProcessor_ThreadSafety(t *testing.T) {
	var c collector
	bp := telemetry.NewBatchProcessor(20, 10*time.Millisecond, c.add)

	const workers, iterations = 10, 100
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for j := range iterations {
				_, _ = bp.Write([]byte("a"))
				if j%10 == 0 {
					bp.Flush()
				}
			}
		})
	}
	wg.Wait()
	require.NoError(t, bp.Close())

	assert.Len(t, c.String(), workers*iterations)
}
