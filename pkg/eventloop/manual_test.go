package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func TestManual_RunToCompletion(t *testing.T) {
	m := NewManual(start)
	order := []string{}
	m.Post(func() {
		order = append(order, "a-start")
		m.Post(func() { order = append(order, "b") })
		m.Go(func() {
			order = append(order, "work")
			m.Post(func() { order = append(order, "work-done") })
		})
		order = append(order, "a-end")
	})
	assert.Equal(t, []string{"a-start", "a-end", "b", "work", "work-done"}, order)
}

func TestManual_Every(t *testing.T) {
	m := NewManual(start)
	ticks := 0
	task := m.Every(time.Second, func() { ticks++ })

	m.Advance(500 * time.Millisecond)
	assert.Equal(t, 0, ticks)
	m.Advance(2500 * time.Millisecond)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, start.Add(3*time.Second), m.Now())

	task.Stop()
	m.Advance(10 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 0, m.ActiveTasks())
}

func TestManual_AfterOrderAndStop(t *testing.T) {
	m := NewManual(start)
	fired := []string{}
	m.After(3*time.Second, func() { fired = append(fired, "late") })
	m.After(1*time.Second, func() { fired = append(fired, "early") })
	cancelled := m.After(2*time.Second, func() { fired = append(fired, "cancelled") })
	cancelled.Stop()

	m.Advance(5 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, 0, m.ActiveTasks())
}

func TestManual_TaskStopsOtherDueTask(t *testing.T) {
	m := NewManual(start)
	var second Task
	fired := 0
	m.After(time.Second, func() { second.Stop() })
	second = m.After(time.Second, func() { fired++ })
	m.Advance(time.Second)
	assert.Equal(t, 0, fired)
}

func TestManual_Call(t *testing.T) {
	m := NewManual(start)
	called := false
	assert.NoError(t, m.Call(context.Background(), func() { called = true }))
	assert.True(t, called)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Call(ctx, func() {}), context.Canceled)
}
