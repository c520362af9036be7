// Package eventloop serializes the state changes of the kiosk on one logical
// thread. Timers, network completions and customer input are all delivered as
// functions posted to the loop and run to completion one after another.
package eventloop

import (
	"context"
	"errors"
	"time"
)

var ErrStopped = errors.New("event loop stopped")

type (
	Loop interface {
		// Post queues fn to run on the loop.
		Post(fn func())
		// Call runs fn on the loop and waits until it returned.
		Call(ctx context.Context, fn func()) error
		// Go runs blocking work off the loop. Results are handed back via Post.
		Go(fn func())
		// Every runs fn on the loop each interval until the task is stopped.
		Every(interval time.Duration, fn func()) Task
		// After runs fn on the loop once after d unless stopped before.
		After(d time.Duration, fn func()) Task
		Now() time.Time
	}

	// Task is a scheduled function. After Stop returned on the loop, the
	// function is never invoked again, even if its timer already fired.
	Task interface {
		Stop()
	}
)
