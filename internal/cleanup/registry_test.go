package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTag(t *testing.T) {
	r := New()
	var ran []string

	r.RegisterTagged("close-watcher", func(context.Context) error {
		ran = append(ran, "close-watcher")
		return nil
	})
	r.RegisterTagged("timer", func(context.Context) error {
		ran = append(ran, "timer")
		return nil
	})

	require.NoError(t, r.Run(context.Background(), "close-watcher"))
	assert.Equal(t, []string{"close-watcher"}, ran)
	assert.True(t, r.HasTasks())

	// Same tag again is a no-op.
	require.NoError(t, r.Run(context.Background(), "close-watcher"))
	assert.Equal(t, []string{"close-watcher"}, ran)
}

func TestAllDrainsInOrder(t *testing.T) {
	r := New()
	var ran []string

	for _, name := range []string{"a", "b", "c"} {
		name := name
		r.Register(func(context.Context) error {
			ran = append(ran, name)
			return nil
		})
	}

	require.NoError(t, r.All(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	assert.False(t, r.HasTasks())

	// Registry is empty; further drains do nothing.
	require.NoError(t, r.All(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestAllCollectsErrors(t *testing.T) {
	r := New()
	boom := errors.New("boom")

	var ran int
	r.Register(func(context.Context) error { ran++; return boom })
	r.Register(func(context.Context) error { ran++; return nil })

	err := r.All(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ran, "an earlier failure must not skip later actions")
}

func TestConcurrentAllRunsOnce(t *testing.T) {
	r := New()

	var mu sync.Mutex
	count := 0
	r.Register(func(context.Context) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.All(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, count)
}

func TestHandleReleaseAndCancel(t *testing.T) {
	r := New()

	var released bool
	h := r.Register(func(context.Context) error {
		released = true
		return nil
	})

	require.NoError(t, h.Release(context.Background()))
	assert.True(t, released)
	assert.False(t, r.HasTasks())

	// Releasing again does nothing.
	released = false
	require.NoError(t, h.Release(context.Background()))
	assert.False(t, released)

	var ran bool
	h2 := r.Register(func(context.Context) error { ran = true; return nil })
	h2.Cancel()
	require.NoError(t, r.All(context.Background()))
	assert.False(t, ran, "canceled action must not run")
}
