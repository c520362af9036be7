// Package idle flags a kiosk nobody has touched for a while so the
// presentation can show the attract overlay.
package idle

import (
	"time"

	"github.com/mpapenbr/simkiosk/pkg/eventloop"
)

// Supervisor is a no-input watchdog. It never changes the visit itself. All
// methods must be called from the event loop.
type Supervisor struct {
	loop       eventloop.Loop
	timeout    time.Duration
	task       eventloop.Task
	idle       bool
	suppressed bool
	onChange   func(idle bool)
}

//nolint:whitespace // can't make both editor and linter happy
func New(
	loop eventloop.Loop, timeout time.Duration, onChange func(idle bool),
) *Supervisor {
	return &Supervisor{loop: loop, timeout: timeout, onChange: onChange}
}

// Touch records customer input: it clears the idle flag and re-arms the
// watchdog.
func (s *Supervisor) Touch() {
	s.set(false)
	s.arm()
}

// Suppress disables the watchdog, e.g. while a session is running. Lifting
// the suppression re-arms it.
func (s *Supervisor) Suppress(suppressed bool) {
	if s.suppressed == suppressed {
		return
	}
	s.suppressed = suppressed
	if suppressed {
		s.disarm()
		s.set(false)
		return
	}
	s.arm()
}

// SetTimeout changes the watchdog duration, effective from the next input.
func (s *Supervisor) SetTimeout(d time.Duration) {
	s.timeout = d
}

func (s *Supervisor) Idle() bool {
	return s.idle
}

func (s *Supervisor) Stop() {
	s.disarm()
}

func (s *Supervisor) arm() {
	s.disarm()
	if s.suppressed || s.timeout <= 0 {
		return
	}
	s.task = s.loop.After(s.timeout, func() {
		s.task = nil
		s.set(true)
	})
}

func (s *Supervisor) disarm() {
	if s.task != nil {
		s.task.Stop()
		s.task = nil
	}
}

func (s *Supervisor) set(idle bool) {
	if s.idle == idle {
		return
	}
	s.idle = idle
	if s.onChange != nil {
		s.onChange(idle)
	}
}
