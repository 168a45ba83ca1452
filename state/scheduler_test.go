package state

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	env, dispatch := NewEnv(context.Background(), slog.Default())
	defer env.Cancel(nil)

	var called atomic.Bool

	go func() {
		select {
		case f := <-dispatch:
			if err := f(); err != nil {
				t.Errorf("Dispatch error: %v", err)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("Timed out waiting for dispatched function")
		}
	}()

	env.Dispatch(func() error {
		called.Store(true)
		return nil
	})

	assert.Eventually(t, called.Load, time.Second, 10*time.Millisecond)
}

func TestDispatchWait(t *testing.T) {
	env, dispatch := NewEnv(context.Background(), slog.Default())
	defer env.Cancel(nil)

	go func() {
		for f := range dispatch {
			_ = f()
		}
	}()

	res, err := env.DispatchWait(func() (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res)

	sentinel := errors.New("boom")
	_, err = env.DispatchWait(func() (any, error) {
		return nil, sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestDispatchWaitCancelled(t *testing.T) {
	env, _ := NewEnv(context.Background(), slog.Default())
	cause := errors.New("stopped")
	env.Cancel(cause)

	_, err := env.DispatchWait(func() (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, cause)
}

func TestDispatchAfterClose(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	dispatch := make(chan func() error)
	env := &Env{DispatchChannel: dispatch, Context: ctx, Cancel: cancel, Log: slog.Default()}
	close(dispatch)

	_, err := env.DispatchWait(func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrDispatchClosed)

	// a send on the closed channel cancels the env instead of crashing
	env.Dispatch(func() error { return nil })
	assert.Error(t, ctx.Err())
}

func TestRepeatTask(t *testing.T) {
	env, dispatch := NewEnv(context.Background(), slog.Default())
	defer env.Cancel(nil)

	var count int

	env.RepeatTask(func() error {
		count++
		if count >= 3 {
			env.Cancel(nil)
		}
		return nil
	}, 20*time.Millisecond)

loop:
	for {
		select {
		case f := <-dispatch:
			require.NoError(t, f())
		case <-env.Context.Done():
			break loop
		case <-time.After(500 * time.Millisecond):
			t.Fatal("Timed out waiting for RepeatTask to execute")
		}
	}
	assert.GreaterOrEqual(t, count, 3)
}
