package eventloop

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mpapenbr/simkiosk/log"
)

type (
	Realtime struct {
		mu      sync.Mutex
		queue   []func()
		wake    chan struct{}
		stopped chan struct{}
		once    sync.Once
		l       *log.Logger
	}
	Option func(*Realtime)

	realtimeTask struct {
		cancelled atomic.Bool
		stop      chan struct{}
		once      sync.Once
		timer     *time.Timer
	}
)

var _ Loop = (*Realtime)(nil)

func NewRealtime(opts ...Option) *Realtime {
	ret := &Realtime{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		l:       log.Default().Named("eventloop"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(r *Realtime) {
		r.l = l
	}
}

// Run processes posted functions until ctx is done.
func (r *Realtime) Run(ctx context.Context) error {
	defer r.once.Do(func() { close(r.stopped) })
	for {
		select {
		case <-ctx.Done():
			r.l.Debug("event loop done")
			return ctx.Err()
		case <-r.wake:
		}
		for fn := r.pop(); fn != nil; fn = r.pop() {
			r.exec(fn)
		}
	}
}

func (r *Realtime) pop() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil
	}
	fn := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return fn
}

// a panicking handler must not take the kiosk down
func (r *Realtime) exec(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.l.Error("recovered panic in event loop",
				log.Any("panic", p),
				log.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}

func (r *Realtime) Post(fn func()) {
	r.mu.Lock()
	r.queue = append(r.queue, fn)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Call must not be used from within the loop.
func (r *Realtime) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	r.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Realtime) Go(fn func()) {
	go fn()
}

func (r *Realtime) Every(interval time.Duration, fn func()) Task {
	t := &realtimeTask{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-r.stopped:
				return
			case <-ticker.C:
				r.Post(t.guard(fn))
			}
		}
	}()
	return t
}

func (r *Realtime) After(d time.Duration, fn func()) Task {
	t := &realtimeTask{stop: make(chan struct{})}
	t.timer = time.AfterFunc(d, func() { r.Post(t.guard(fn)) })
	return t
}

func (r *Realtime) Now() time.Time {
	return time.Now()
}

func (t *realtimeTask) guard(fn func()) func() {
	return func() {
		if !t.cancelled.Load() {
			fn()
		}
	}
}

func (t *realtimeTask) Stop() {
	t.cancelled.Store(true)
	t.once.Do(func() {
		close(t.stop)
		if t.timer != nil {
			t.timer.Stop()
		}
	})
}
