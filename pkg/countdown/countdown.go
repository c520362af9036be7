// Package countdown drives the clock of an active session.
package countdown

import (
	"time"

	"github.com/mpapenbr/simkiosk/pkg/eventloop"
)

// Timer counts down once per second on the event loop. All methods must be
// called from the loop.
type Timer struct {
	loop      eventloop.Loop
	remaining int
	task      eventloop.Task
	onTick    func(remaining int)
	onExpire  func()
}

//nolint:whitespace // can't make both editor and linter happy
func New(
	loop eventloop.Loop, onTick func(remaining int), onExpire func(),
) *Timer {
	return &Timer{loop: loop, onTick: onTick, onExpire: onExpire}
}

// Start (re)starts the countdown at minutes*60 seconds.
func (t *Timer) Start(minutes int) {
	t.Stop()
	t.remaining = minutes * 60
	t.task = t.loop.Every(time.Second, t.tick)
}

func (t *Timer) tick() {
	if t.task == nil || t.remaining <= 0 {
		return
	}
	t.remaining--
	if t.onTick != nil {
		t.onTick(t.remaining)
	}
	if t.remaining == 0 {
		t.Stop()
		if t.onExpire != nil {
			t.onExpire()
		}
	}
}

// Stop cancels the tick. The remaining seconds are kept for display.
func (t *Timer) Stop() {
	if t.task != nil {
		t.task.Stop()
		t.task = nil
	}
}

func (t *Timer) Running() bool {
	return t.task != nil
}

func (t *Timer) Remaining() int {
	return t.remaining
}

// Clear stops the countdown and forgets the remaining seconds.
func (t *Timer) Clear() {
	t.Stop()
	t.remaining = 0
}
