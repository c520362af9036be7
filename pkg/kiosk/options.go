package kiosk

import (
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/eventloop"
	"github.com/mpapenbr/simkiosk/pkg/venue"
)

type (
	Option func(*Orchestrator)

	// Intervals controls how often external resources are polled.
	Intervals struct {
		Payment  time.Duration
		Lobby    time.Duration
		Hardware time.Duration
	}
)

func DefaultIntervals() Intervals {
	return Intervals{
		Payment:  2 * time.Second,
		Lobby:    time.Second,
		Hardware: 2 * time.Second,
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		o.l = l
	}
}

// WithLoop sets the event loop. The caller runs it.
func WithLoop(loop eventloop.Loop) Option {
	return func(o *Orchestrator) {
		o.loop = loop
	}
}

// WithVenue sets the venue settings. They are normalized, invalid settings
// fall back to the defaults.
func WithVenue(s venue.Settings) Option {
	return func(o *Orchestrator) {
		o.venue = s
	}
}

// WithFeed enables push notifications for lobby status changes.
func WithFeed(feed backend.LobbyFeed) Option {
	return func(o *Orchestrator) {
		o.feed = feed
	}
}

// WithIntervals overrides poll intervals. Zero values keep the default.
func WithIntervals(i Intervals) Option {
	return func(o *Orchestrator) {
		if i.Payment > 0 {
			o.intervals.Payment = i.Payment
		}
		if i.Lobby > 0 {
			o.intervals.Lobby = i.Lobby
		}
		if i.Hardware > 0 {
			o.intervals.Hardware = i.Hardware
		}
	}
}

// WithCallTimeout bounds every single backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

// WithOnChange registers a callback receiving every changed view. It is
// called on the event loop and must not block.
func WithOnChange(fn func(View)) Option {
	return func(o *Orchestrator) {
		o.onChange = fn
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

func defaultIDGenerator() string {
	return uuid.NewString()
}
