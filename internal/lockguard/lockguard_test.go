package lockguard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

func TestAcquireRelease(t *testing.T) {
	km := New()
	ctx := context.Background()

	g, err := km.Acquire(ctx, "STU000001", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "STU000001", g.Key())
	assert.Equal(t, 1, km.Stats().Held)

	g.Release()
	assert.Zero(t, km.Stats().Held)
}

func TestAcquire_DifferentKeysAreIndependent(t *testing.T) {
	km := New()
	ctx := context.Background()

	g1, err := km.Acquire(ctx, "STU000001", 50*time.Millisecond)
	require.NoError(t, err)
	defer g1.Release()

	g2, err := km.Acquire(ctx, "STU000002", 50*time.Millisecond)
	require.NoError(t, err)
	defer g2.Release()

	assert.Equal(t, 2, km.Stats().Held)
}

func TestAcquire_TimesOutWhileHeld(t *testing.T) {
	km := New()
	ctx := context.Background()

	g, err := km.Acquire(ctx, "STU000001", time.Second)
	require.NoError(t, err)
	defer g.Release()

	start := time.Now()
	_, err = km.Acquire(ctx, "STU000001", 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLockTimeout))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAcquire_SucceedsAfterRelease(t *testing.T) {
	km := New()
	ctx := context.Background()

	g, err := km.Acquire(ctx, "STU000001", time.Second)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		g2, err := km.Acquire(ctx, "STU000001", time.Second)
		if err == nil {
			g2.Release()
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	g.Release()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke after release")
	}
}

func TestAcquire_ContextCancellation(t *testing.T) {
	km := New()

	g, err := km.Acquire(context.Background(), "STU000001", time.Second)
	require.NoError(t, err)
	defer g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := km.Acquire(ctx, "STU000001", 10*time.Second)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("waiter ignored cancellation")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	km := New()

	g, err := km.Acquire(context.Background(), "STU000001", time.Second)
	require.NoError(t, err)

	g.Release()
	g.Release() // must not panic or corrupt state
	assert.Zero(t, km.Stats().Held)

	// Key is reusable after double release.
	g2, err := km.Acquire(context.Background(), "STU000001", time.Second)
	require.NoError(t, err)
	g2.Release()
}

func TestAcquire_MutualExclusionUnderContention(t *testing.T) {
	km := New()
	ctx := context.Background()

	const goroutines = 20
	var inCritical int
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := km.Acquire(ctx, "STU000001", 5*time.Second)
			require.NoError(t, err)
			defer g.Release()

			// Only one goroutine may be between Acquire and Release.
			inCritical++
			assert.Equal(t, 1, inCritical)
			counter++
			inCritical--
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
	assert.Zero(t, km.Stats().Held)
	assert.Zero(t, km.Stats().Waiters)
}

func TestStats_ReportsWaiters(t *testing.T) {
	km := New()
	ctx := context.Background()

	g, err := km.Acquire(ctx, "STU000001", time.Second)
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		g2, err := km.Acquire(ctx, "STU000001", 5*time.Second)
		if err == nil {
			g2.Release()
		}
		close(done)
	}()

	<-started
	require.Eventually(t, func() bool {
		return km.Stats().Waiters == 1
	}, time.Second, 5*time.Millisecond)

	g.Release()
	<-done
	assert.Zero(t, km.Stats().Waiters)
}
