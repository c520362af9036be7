// Package kiosk sequences a customer visit: scenario, driver, content,
// difficulty, payment, waiting room, the running session and results.
//
// All state lives on one event loop. Public methods hand their work to the
// loop and may be called from any goroutine. Backend calls run off the loop,
// their results are applied on the loop only while they still belong to the
// current visit.
package kiosk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/countdown"
	"github.com/mpapenbr/simkiosk/pkg/eventloop"
	"github.com/mpapenbr/simkiosk/pkg/idle"
	"github.com/mpapenbr/simkiosk/pkg/launcher"
	"github.com/mpapenbr/simkiosk/pkg/lobby"
	"github.com/mpapenbr/simkiosk/pkg/model"
	"github.com/mpapenbr/simkiosk/pkg/payment"
	"github.com/mpapenbr/simkiosk/pkg/utils/broadcast"
	"github.com/mpapenbr/simkiosk/pkg/venue"
)

type (
	Orchestrator struct {
		ctx         context.Context
		cancel      context.CancelFunc
		backend     backend.Backend
		feed        backend.LobbyFeed
		stationID   string
		loop        eventloop.Loop
		ownLoop     *eventloop.Realtime
		l           *log.Logger
		venue       venue.Settings
		intervals   Intervals
		callTimeout time.Duration
		onChange    func(View)
		newID       func() string
		metrics     *metrics

		// loop owned state
		gen         uint64
		v           visit
		alert       *Alert
		hardware    *model.HardwareStatus
		provider    model.Provider
		payment     *payment.Coordinator
		lobby       *lobby.Synchronizer
		launcher    *launcher.Launcher
		launchLatch launcher.Latch
		countdown   *countdown.Timer
		idle        *idle.Supervisor
		polls       map[string]*poll

		viewMu sync.RWMutex
		last   View
		views  chan View
		bcst   broadcast.BroadcastServer[View]
	}

	// visit is everything that is destroyed by a reset.
	visit struct {
		step           model.Step
		selection      model.Selection
		scenario       *model.Scenario
		driver         *model.Driver
		skippedContent bool
		launched       bool
		launching      bool
		launchFailed   bool
		preview        *model.LobbyRecord
		session        *model.SessionRecord
		result         *model.SessionResult
		banners        map[BannerKind]Banner
	}
)

func newVisit() visit {
	return visit{
		step:      model.StepScenario,
		selection: model.NewSelection(),
		banners:   make(map[BannerKind]Banner),
	}
}

//nolint:whitespace // can't make both editor and linter happy
func New(
	b backend.Backend, stationID string, opts ...Option,
) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		ctx:         ctx,
		cancel:      cancel,
		backend:     b,
		stationID:   stationID,
		l:           log.Default().Named("kiosk"),
		venue:       venue.Default(),
		intervals:   DefaultIntervals(),
		callTimeout: 10 * time.Second,
		newID:       defaultIDGenerator,
		v:           newVisit(),
		polls:       make(map[string]*poll),
		views:       make(chan View, 16),
	}
	for _, opt := range opts {
		opt(o)
	}
	if s, err := o.venue.Normalize(); err != nil {
		o.l.Warn("invalid venue settings, using defaults", log.ErrorField(err))
		o.venue = venue.Default()
	} else {
		o.venue = s
	}
	if o.loop == nil {
		o.ownLoop = eventloop.NewRealtime(eventloop.WithLogger(o.l.Named("loop")))
		o.loop = o.ownLoop
	}
	o.provider = o.venue.DefaultProvider
	o.metrics = newMetrics(stationID, o.l)
	o.payment = payment.NewCoordinator(b, stationID,
		payment.WithLogger(o.l.Named("payment")))
	lobbyOpts := []lobby.Option{lobby.WithLogger(o.l.Named("lobby"))}
	if o.feed != nil {
		lobbyOpts = append(lobbyOpts, lobby.WithFeed(o.feed))
	}
	o.lobby = lobby.NewSynchronizer(b, stationID, lobbyOpts...)
	o.launcher = launcher.New(b, b, stationID,
		launcher.WithLogger(o.l.Named("launcher")))
	o.countdown = countdown.New(o.loop, func(int) { o.publish() }, o.sessionExpired)
	o.idle = idle.New(o.loop, o.venue.IdleTimeout, func(bool) { o.publish() })
	o.bcst = broadcast.NewBroadcastServer("view", "kiosk", o.views,
		broadcast.WithLogger[View](o.l.Named("broadcast")))
	o.last = o.buildView()
	return o
}

// Start begins hardware polling and the idle watchdog. Without WithLoop the
// orchestrator runs its own loop until Close.
func (o *Orchestrator) Start() {
	if o.ownLoop != nil {
		go func() {
			if err := o.ownLoop.Run(o.ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.l.Error("event loop stopped", log.ErrorField(err))
			}
		}()
	}
	o.loop.Post(func() {
		o.l.Info("kiosk started", log.String("station", o.stationID))
		o.startHardwarePoll()
		o.idle.Touch()
		o.publish()
	})
}

// Close stops all scheduled work. In-flight backend calls are cancelled.
func (o *Orchestrator) Close(ctx context.Context) error {
	err := o.loop.Call(ctx, func() {
		o.gen++
		for name := range o.polls {
			o.stopPoll(name)
		}
		o.countdown.Clear()
		o.idle.Stop()
		o.lobby.Reset()
	})
	o.cancel()
	o.bcst.Close()
	return err
}

// View returns the latest published view.
func (o *Orchestrator) View() View {
	o.viewMu.RLock()
	defer o.viewMu.RUnlock()
	return o.last
}

// Subscribe delivers every changed view. Slow subscribers miss views.
func (o *Orchestrator) Subscribe() <-chan View {
	return o.bcst.Subscribe()
}

func (o *Orchestrator) Unsubscribe(ch <-chan View) {
	o.bcst.CancelSubscription(ch)
}

// act runs a customer action on the loop. Every action counts as input.
func (o *Orchestrator) act(ctx context.Context, name string, fn func() error) error {
	var err error
	if callErr := o.loop.Call(ctx, func() {
		o.alert = nil
		o.idle.Touch()
		err = fn()
		o.publish()
	}); callErr != nil {
		return callErr
	}
	if err != nil {
		o.l.Debug("action rejected", log.String("action", name), log.ErrorField(err))
	}
	return err
}

// async runs work off the loop. The function work returns is applied on the
// loop unless the visit was reset in between.
func (o *Orchestrator) async(work func(ctx context.Context) func()) {
	gen := o.gen
	o.loop.Go(func() {
		ctx, cancel := context.WithTimeout(o.ctx, o.callTimeout)
		defer cancel()
		apply := work(ctx)
		o.loop.Post(func() {
			if gen != o.gen {
				o.metrics.staleDropped(o.ctx, "visit")
				return
			}
			if apply != nil {
				apply()
				o.publish()
			}
		})
	})
}

// background is like async for station level work that survives resets.
func (o *Orchestrator) background(work func(ctx context.Context) func()) {
	o.loop.Go(func() {
		ctx, cancel := context.WithTimeout(o.ctx, o.callTimeout)
		defer cancel()
		apply := work(ctx)
		if apply == nil {
			return
		}
		o.loop.Post(func() {
			apply()
			o.publish()
		})
	})
}

// hardReset destroys the visit. alert is shown until the next input.
func (o *Orchestrator) hardReset(reason string, alert *Alert) {
	wasLaunched := o.v.launched
	o.gen++
	o.stopVisitPolls()
	o.countdown.Clear()
	o.payment.Reset()
	o.lobby.Reset()
	o.launchLatch.Reset()
	o.idle.Suppress(false)
	o.v = newVisit()
	o.provider = o.venue.DefaultProvider
	o.alert = alert
	o.metrics.reset(o.ctx, reason)
	o.l.Info("visit reset", log.String("reason", reason))
	if wasLaunched {
		o.stopStation()
	}
}

func (o *Orchestrator) setBanner(b Banner) {
	o.v.banners[b.Kind] = b
}

func (o *Orchestrator) clearBanner(kind BannerKind) {
	delete(o.v.banners, kind)
}
