package xsync

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	l := NewLatch()
	assert.False(t, l.Test())
	go l.Trigger()
	l.Wait()
	assert.True(t, l.Test())
	l.Trigger() // No-op.

	lv := NewLatchWithValue[int]()
	go lv.Trigger(7)
	assert.Equal(t, 7, lv.Wait())
	lv.Trigger(11)
	assert.Equal(t, 7, lv.Wait())
}

func TestFuture(t *testing.T) {
	f := NewFuture[bool]()
	assert.False(t, f.IsResolved())
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve(true, nil)
	}()
	got, err := f.Await()
	require.NoError(t, err)
	assert.True(t, got)

	// Re-querying returns the cached result, later resolutions are ignored.
	f.Resolve(false, errors.New("ignored"))
	got, err = f.Await()
	require.NoError(t, err)
	assert.True(t, got)

	failed := ResolvedFuture(false, errors.New("device lost"))
	select {
	case <-failed.Done():
	default:
		t.Fatal("ResolvedFuture should be done")
	}
	_, err = failed.Await()
	require.ErrorContains(t, err, "device lost")
}

func TestFutureAwaitContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := f.AwaitContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	f.Resolve(3, nil)
	got, err := f.AwaitContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestDynamicWaitGroup(t *testing.T) {
	wg := NewDynamicWaitGroup()
	wg.Wait() // Zero count doesn't block.
	wg.Add(2)
	assert.Equal(t, 2, wg.Count())
	done := NewLatch()
	go func() {
		wg.Wait()
		done.Trigger()
	}()
	wg.Done()
	wg.Add(1) // Grows while someone waits.
	wg.Done()
	assert.False(t, done.Test())
	wg.Done()
	select {
	case <-done.WaitChan():
	case <-time.After(time.Second):
		t.Fatal("Wait didn't return after count reached zero")
	}
	assert.Panics(t, func() { wg.Done() })
}
