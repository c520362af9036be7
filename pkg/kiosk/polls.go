package kiosk

import (
	"context"
	"time"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/eventloop"
)

const (
	pollHardware = "hardware"
	pollPayment  = "payment"
	pollLobby    = "lobby"
)

// poll is a named, cancellable task fetching one resource. A poll never has
// more than one request in flight.
type poll struct {
	name     string
	resource string
	task     eventloop.Task
	run      func()
	busy     bool
	stopped  bool
}

// startPoll replaces the poll called name. stale is checked on the loop
// before each request and before each response is applied, a stale poll
// stops itself.
//
//nolint:whitespace // can't make both editor and linter happy
func (o *Orchestrator) startPoll(
	name, resource string,
	interval time.Duration,
	stale func() bool,
	fetch func(ctx context.Context) func(),
) {
	o.stopPoll(name)
	p := &poll{name: name, resource: resource}
	isStale := func() bool {
		return p.stopped || o.polls[name] != p || (stale != nil && stale())
	}
	p.run = func() {
		if p.busy {
			return
		}
		if isStale() {
			o.stopPoll(name)
			return
		}
		p.busy = true
		o.loop.Go(func() {
			ctx, cancel := context.WithTimeout(o.ctx, o.callTimeout)
			defer cancel()
			apply := fetch(ctx)
			o.loop.Post(func() {
				p.busy = false
				if isStale() {
					o.metrics.staleDropped(o.ctx, name)
					o.l.Debug("dropping stale poll response",
						log.String("poll", name), log.String("resource", resource))
					return
				}
				if apply != nil {
					apply()
					o.publish()
				}
			})
		})
	}
	p.task = o.loop.Every(interval, p.run)
	o.polls[name] = p
	o.l.Debug("poll started",
		log.String("poll", name),
		log.String("resource", resource),
		log.Duration("interval", interval))
}

func (o *Orchestrator) stopPoll(name string) {
	p, ok := o.polls[name]
	if !ok {
		return
	}
	p.stopped = true
	p.task.Stop()
	delete(o.polls, name)
	o.l.Debug("poll stopped", log.String("poll", name), log.String("resource", p.resource))
}

// stopVisitPolls stops everything but the station level polls.
func (o *Orchestrator) stopVisitPolls() {
	for name := range o.polls {
		if name != pollHardware {
			o.stopPoll(name)
		}
	}
}

// pollNow triggers the named poll without waiting for the next interval.
func (o *Orchestrator) pollNow(name string) {
	if p, ok := o.polls[name]; ok {
		p.run()
	}
}
