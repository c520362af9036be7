package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/poll"
)

func startLoop(t *testing.T) (*Realtime, context.CancelFunc) {
	t.Helper()
	r := NewRealtime()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		//nolint:errcheck // ends with context.Canceled
		r.Run(ctx)
	}()
	t.Cleanup(cancel)
	return r, cancel
}

func TestRealtime_CallRunsOnLoop(t *testing.T) {
	r, _ := startLoop(t)
	counter := 0
	for range 100 {
		r.Go(func() {
			r.Post(func() { counter++ })
		})
	}
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		var got int
		if err := r.Call(context.Background(), func() { got = counter }); err != nil {
			return poll.Error(err)
		}
		if got == 100 {
			return poll.Success()
		}
		return poll.Continue("counter at %d", got)
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(10*time.Millisecond))
}

func TestRealtime_StoppedTaskNeverFires(t *testing.T) {
	r, _ := startLoop(t)
	var fired atomic.Int32
	var task Task
	require.NoError(t, r.Call(context.Background(), func() {
		task = r.Every(5*time.Millisecond, func() { fired.Add(1) })
	}))
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if fired.Load() > 0 {
			return poll.Success()
		}
		return poll.Continue("no tick yet")
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(5*time.Millisecond))

	var atStop int32
	require.NoError(t, r.Call(context.Background(), func() {
		task.Stop()
		atStop = fired.Load()
	}))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, r.Call(context.Background(), func() {}))
	assert.Equal(t, atStop, fired.Load())
}

func TestRealtime_RecoversPanic(t *testing.T) {
	r, _ := startLoop(t)
	r.Post(func() { panic("boom") })
	ok := false
	require.NoError(t, r.Call(context.Background(), func() { ok = true }))
	assert.True(t, ok)
}

func TestRealtime_CallAfterStop(t *testing.T) {
	r, cancel := startLoop(t)
	cancel()
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		err := r.Call(context.Background(), func() {})
		if err == ErrStopped {
			return poll.Success()
		}
		return poll.Continue("loop still running")
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(5*time.Millisecond))
}
