package mainloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startLoop runs l on a new goroutine and stops it when the test ends.
func startLoop(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
	})
}

func TestLoop_CallRunsOnLoopGoroutine(t *testing.T) {
	l := New()
	startLoop(t, l)

	assert.False(t, l.IsCurrent())

	var inside bool
	err := l.Call(context.Background(), func() error {
		inside = l.IsCurrent()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, inside)
}

func TestLoop_CallReturnsTaskError(t *testing.T) {
	l := New()
	startLoop(t, l)

	want := errors.New("task failed")
	err := l.Call(context.Background(), func() error { return want })
	assert.ErrorIs(t, err, want)
}

func TestLoop_CallRecoversPanic(t *testing.T) {
	l := New()
	startLoop(t, l)

	err := l.Call(context.Background(), func() error { panic("kaboom") })

	var panicErr *TaskPanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)

	// The loop survives the panic.
	require.NoError(t, l.Call(context.Background(), func() error { return nil }))
}

func TestLoop_NestedCallRunsInline(t *testing.T) {
	l := New()
	startLoop(t, l)

	var order []string
	err := l.Call(context.Background(), func() error {
		order = append(order, "outer")
		return l.Call(context.Background(), func() error {
			order = append(order, "inner")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestLoop_PostPreservesOrder(t *testing.T) {
	l := New()
	startLoop(t, l)

	var got []int
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	// Call is queued behind every Post, so it observes all of them.
	var snapshot []int
	require.NoError(t, l.Call(context.Background(), func() error {
		snapshot = append(snapshot, got...)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, snapshot)
}

func TestLoop_PostQueueFull(t *testing.T) {
	l := New(WithQueueSize(1))

	require.NoError(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Post(func() {}), ErrQueueFull)
}

func TestLoop_RunTwice(t *testing.T) {
	l := New()
	startLoop(t, l)

	// Wait until the first Run owns the loop.
	require.NoError(t, l.Call(context.Background(), func() error { return nil }))
	assert.ErrorIs(t, l.Run(context.Background()), ErrAlreadyRunning)
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.NoError(t, l.Call(context.Background(), func() error { return nil }))
	cancel()
	require.NoError(t, <-done)

	select {
	case <-l.Stopped():
	case <-time.After(time.Second):
		t.Fatal("Stopped() not closed after Run returned")
	}

	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Call(context.Background(), func() error { return nil }), ErrStopped)
	assert.ErrorIs(t, l.Run(context.Background()), ErrStopped)
	assert.False(t, l.IsCurrent())
}

func TestLoop_CallHonorsContext(t *testing.T) {
	l := New()
	startLoop(t, l)

	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Call(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
