package idle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/simkiosk/pkg/eventloop"
)

func TestSupervisor(t *testing.T) {
	loop := eventloop.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	var changes []bool
	s := New(loop, 5*time.Minute, func(idle bool) { changes = append(changes, idle) })
	s.Touch()

	loop.Advance(4 * time.Minute)
	assert.False(t, s.Idle())
	s.Touch()
	loop.Advance(4 * time.Minute)
	assert.False(t, s.Idle(), "input re-arms the watchdog")

	loop.Advance(time.Minute)
	assert.True(t, s.Idle())

	s.Touch()
	assert.False(t, s.Idle())
	assert.Equal(t, []bool{true, false}, changes)
}

func TestSupervisor_Suppressed(t *testing.T) {
	loop := eventloop.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(loop, time.Minute, nil)
	s.Touch()
	s.Suppress(true)
	loop.Advance(time.Hour)
	assert.False(t, s.Idle())

	s.Touch()
	loop.Advance(time.Hour)
	assert.False(t, s.Idle(), "input while suppressed does not arm")

	s.Suppress(false)
	loop.Advance(time.Minute)
	assert.True(t, s.Idle())

	s.Suppress(true)
	assert.False(t, s.Idle(), "suppression clears the flag")
	s.Stop()
	assert.Equal(t, 0, loop.ActiveTasks())
}
