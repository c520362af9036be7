package eventloop

import (
	"context"
	"time"
)

type (
	// Manual is a loop driven by virtual time. Posted functions and Go work run
	// synchronously before Post, Go, Call or Advance return. Not safe for
	// concurrent use.
	Manual struct {
		now      time.Time
		queue    []func()
		work     []func()
		draining bool
		tasks    []*manualTask
	}

	manualTask struct {
		next      time.Time
		interval  time.Duration
		fn        func()
		cancelled bool
	}
)

var _ Loop = (*Manual)(nil)

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
	m.drain()
}

func (m *Manual) Call(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Post(fn)
	return nil
}

func (m *Manual) Go(fn func()) {
	m.work = append(m.work, fn)
	m.drain()
}

// drain runs queued loop functions first, then pending work, until both are
// empty. Nested calls only enqueue, which keeps run-to-completion semantics.
func (m *Manual) drain() {
	if m.draining {
		return
	}
	m.draining = true
	defer func() { m.draining = false }()
	for len(m.queue) > 0 || len(m.work) > 0 {
		if len(m.queue) > 0 {
			fn := m.queue[0]
			m.queue = m.queue[1:]
			fn()
			continue
		}
		fn := m.work[0]
		m.work = m.work[1:]
		fn()
	}
}

func (m *Manual) Every(interval time.Duration, fn func()) Task {
	t := &manualTask{next: m.now.Add(interval), interval: interval, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

func (m *Manual) After(d time.Duration, fn func()) Task {
	t := &manualTask{next: m.now.Add(d), fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

func (m *Manual) Now() time.Time {
	return m.now
}

// Advance moves the virtual clock forward and fires every task that becomes
// due, in time order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.now = t.next
		if t.interval > 0 {
			t.next = t.next.Add(t.interval)
		} else {
			t.cancelled = true
		}
		fn := t.fn
		m.Post(fn)
	}
	m.now = target
	m.prune()
}

// AdvanceSteps advances n times by step.
func (m *Manual) AdvanceSteps(n int, step time.Duration) {
	for range n {
		m.Advance(step)
	}
}

// ActiveTasks is the number of scheduled tasks that may still fire.
func (m *Manual) ActiveTasks() int {
	m.prune()
	return len(m.tasks)
}

func (m *Manual) nextDue(target time.Time) *manualTask {
	var ret *manualTask
	for _, t := range m.tasks {
		if t.cancelled || t.next.After(target) {
			continue
		}
		if ret == nil || t.next.Before(ret.next) {
			ret = t
		}
	}
	return ret
}

func (m *Manual) prune() {
	active := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.cancelled {
			active = append(active, t)
		}
	}
	m.tasks = active
}

func (t *manualTask) Stop() {
	t.cancelled = true
}
