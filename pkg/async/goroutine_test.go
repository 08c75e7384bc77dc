package async

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flooanalytics/ingest/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func TestSafeGo_RunsAndRecovers(t *testing.T) {
	var ran atomic.Bool
	SafeGo(context.Background(), testLogger(), time.Second, "ok", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	assert.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	SafeGo(context.Background(), testLogger(), time.Second, "panics", func(context.Context) error {
		defer close(done)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking task never ran")
	}
}

func TestSafeGo_Timeout(t *testing.T) {
	errCh := make(chan error, 1)
	SafeGo(context.Background(), testLogger(), 20*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	})
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("timeout not enforced")
	}
}

func TestWorkerPool_DrainsOnShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 3, QueueSize: 50, Logger: testLogger()})

	var count atomic.Int64
	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.EqualValues(t, 50, count.Load())
	assert.ErrorIs(t, pool.TrySubmit(func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestWorkerPool_TrySubmitQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1, QueueSize: 1, Logger: testLogger()})

	require.NoError(t, pool.TrySubmit(func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, pool.TrySubmit(func(context.Context) error { return nil }))
	assert.Equal(t, 1, pool.Len())
	assert.ErrorIs(t, pool.TrySubmit(func(context.Context) error { return nil }), ErrQueueFull)

	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestWorkerPool_ReportsErrorsAndPanics(t *testing.T) {
	var mu sync.Mutex
	var errs []error
	pool := NewWorkerPool(context.Background(), PoolConfig{
		Workers: 1,
		Logger:  testLogger(),
		OnError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		},
	})

	boom := errors.New("boom")
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) error { return boom }))
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) error { panic("bad") }))
	require.NoError(t, pool.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
	assert.EqualError(t, errs[1], "panic: bad")
}

func TestWorkerPool_ShutdownDeadline(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1, TaskTimeout: time.Minute, Logger: testLogger()})
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)
}
