package kiosk

import (
	"context"
	"errors"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/launcher"
	"github.com/mpapenbr/simkiosk/pkg/lobby"
	"github.com/mpapenbr/simkiosk/pkg/model"
	"github.com/mpapenbr/simkiosk/pkg/payment"
)

func (o *Orchestrator) driverCopy() *model.Driver {
	if o.v.driver == nil {
		return nil
	}
	d := *o.v.driver
	return &d
}

// startCheckout supersedes any previous checkout of the visit.
func (o *Orchestrator) startCheckout() {
	o.stopPoll(pollPayment)
	o.clearBanner(BannerCheckout)
	o.clearBanner(BannerPayment)
	token := o.payment.Begin()
	sel, driver, provider := o.v.selection.Clone(), o.driverCopy(), o.provider
	o.metrics.checkout(o.ctx, provider)
	o.async(func(ctx context.Context) func() {
		p, err := o.payment.Checkout(ctx, sel, driver, provider)
		return func() {
			if !o.payment.Current(token) {
				o.metrics.staleDropped(o.ctx, "checkout")
				return
			}
			if err != nil {
				o.setBanner(Banner{Kind: BannerCheckout, Message: err.Error(), Retryable: true})
				return
			}
			if !o.payment.AcceptCheckout(token, p) {
				return
			}
			switch {
			case p.Status == model.PaymentPaid:
				o.onSettled()
			case p.Status.Terminal():
				o.paymentFailed(p)
			default:
				o.startPaymentPoll(p.ID)
			}
		}
	})
}

func (o *Orchestrator) startPaymentPoll(id string) {
	o.startPoll(pollPayment, id, o.intervals.Payment,
		func() bool {
			pending, ok := o.payment.PendingID()
			return !ok || pending != id
		},
		func(ctx context.Context) func() {
			p, err := o.payment.Status(ctx, id)
			if err != nil {
				o.l.Debug("payment status unavailable",
					log.String("id", id), log.ErrorField(err))
				return nil
			}
			return func() { o.applyPaymentStatus(p) }
		})
}

// applyPaymentStatus must be called on the loop.
func (o *Orchestrator) applyPaymentStatus(p *model.PaymentState) {
	switch o.payment.AcceptStatus(p) {
	case payment.OutcomeStale:
		o.metrics.staleDropped(o.ctx, pollPayment)
	case payment.OutcomeSettled:
		o.stopPoll(pollPayment)
		o.onSettled()
	case payment.OutcomeFailed:
		o.stopPoll(pollPayment)
		o.paymentFailed(p)
	case payment.OutcomeUnchanged, payment.OutcomeUpdated:
	}
}

func (o *Orchestrator) paymentFailed(p *model.PaymentState) {
	o.l.Warn("payment not completed",
		log.String("id", p.ID), log.String("status", string(p.Status)))
	o.setBanner(Banner{
		Kind:      BannerPayment,
		Message:   "payment " + string(p.Status),
		Retryable: true,
	})
}

// settleComplimentary settles a visit at a venue that does not charge.
func (o *Orchestrator) settleComplimentary() {
	o.payment.Complimentary()
	o.onSettled()
}

// onSettled hands a settled payment over to the lobby or the launcher. It
// acts at most once per payment.
func (o *Orchestrator) onSettled() {
	if !o.payment.Dispatch() {
		return
	}
	active := o.payment.Active()
	o.metrics.settled(o.ctx, active.Provider)
	o.l.Info("payment settled",
		log.String("id", active.ID), log.String("provider", string(active.Provider)))
	o.clearBanner(BannerCheckout)
	o.clearBanner(BannerPayment)
	if o.v.selection.Lobby != nil {
		o.dispatchLobby()
		return
	}
	o.launch()
}

func (o *Orchestrator) dispatchLobby() {
	sel, driver := o.v.selection.Clone(), o.driverCopy()
	host := sel.IsHost()
	maxPlayers := o.venue.Lobby.MaxPlayers
	o.async(func(ctx context.Context) func() {
		var rec *model.LobbyRecord
		var err error
		if host {
			rec, err = o.lobby.Create(ctx, sel, driver, maxPlayers)
		} else {
			rec, err = o.lobby.Join(ctx, sel.Lobby.ID)
		}
		return func() {
			if err != nil {
				o.lobbyLost(err)
				return
			}
			o.enterWaitingRoom(rec, host)
		}
	})
}

func (o *Orchestrator) enterWaitingRoom(rec *model.LobbyRecord, host bool) {
	o.lobby.Attach(rec, host)
	o.v.selection.Lobby.ID = rec.ID
	o.v.selection.Lobby.Name = rec.Name
	o.v.step = model.StepWaitingRoom
	id := rec.ID
	o.subscribeLobby(id)
	o.startPoll(pollLobby, id, o.intervals.Lobby,
		func() bool { return o.lobby.ID() != id },
		func(ctx context.Context) func() {
			rec, err := o.lobby.Fetch(ctx, id)
			if err != nil {
				var unavailable *lobby.UnavailableError
				if !errors.As(err, &unavailable) {
					o.l.Debug("lobby unavailable for now",
						log.String("lobby", id), log.ErrorField(err))
					return nil
				}
				return func() { o.lobbyLost(err) }
			}
			return func() { o.applyLobbyOutcome(o.lobby.Accept(rec), rec.Status) }
		})
	o.applyLobbyOutcome(o.lobby.Accept(rec), rec.Status)
}

// subscribeLobby registers for push notifications off the loop. The
// subscription is bound to the mirror once it is established.
func (o *Orchestrator) subscribeLobby(id string) {
	gen := o.gen
	notify := func(lobbyID string, status model.LobbyStatus) {
		o.loop.Post(func() {
			if gen != o.gen {
				return
			}
			o.applyLobbyOutcome(o.lobby.AcceptStatus(lobbyID, status), status)
			o.publish()
		})
	}
	o.loop.Go(func() {
		unsubscribe := o.lobby.Subscribe(id, notify)
		if unsubscribe == nil {
			return
		}
		o.loop.Post(func() {
			if gen != o.gen {
				unsubscribe()
				return
			}
			o.lobby.Bind(id, unsubscribe)
		})
	})
}

// applyLobbyOutcome reacts to a merged poll response or push notification.
func (o *Orchestrator) applyLobbyOutcome(outcome lobby.Outcome, status model.LobbyStatus) {
	switch outcome {
	case lobby.OutcomeStale:
		o.metrics.staleDropped(o.ctx, pollLobby)
		return
	case lobby.OutcomeRunning:
		o.onLobbyRunning()
		return
	case lobby.OutcomeUnchanged, lobby.OutcomeUpdated:
	}
	if o.v.launched || o.v.launching {
		return
	}
	if status == model.LobbyFinished {
		o.lobbyLost(&lobby.UnavailableError{LobbyID: o.lobby.ID(), Cause: errLobbyClosed})
		return
	}
	if o.lobby.ClaimAutoStart(o.loop.Now(), o.venue.Lobby.GraceWindow) {
		o.startLobby(true)
	}
}

func (o *Orchestrator) startLobby(auto bool) {
	id := o.lobby.ID()
	if auto {
		o.metrics.autostart(o.ctx)
		o.l.Info("grace window elapsed, starting lobby", log.String("lobby", id))
	}
	o.async(func(ctx context.Context) func() {
		err := o.lobby.Start(ctx, id)
		return func() { o.lobbyCallDone(err) }
	})
}

// lobbyCallDone surfaces a failed ready or start request.
func (o *Orchestrator) lobbyCallDone(err error) {
	if err == nil {
		o.clearBanner(BannerLobby)
		return
	}
	var unavailable *lobby.UnavailableError
	if errors.As(err, &unavailable) && !o.v.launched && !o.v.launching {
		o.lobbyLost(err)
		return
	}
	o.setBanner(Banner{Kind: BannerLobby, Message: err.Error(), Retryable: true})
}

func (o *Orchestrator) onLobbyRunning() {
	if !o.launchLatch.Claim() {
		return
	}
	o.stopPoll(pollLobby)
	o.l.Info("lobby running", log.String("lobby", o.lobby.ID()))
	o.launch()
}

// lobbyLost ends a visit whose lobby cannot be used. The alert stays visible
// until the next input.
func (o *Orchestrator) lobbyLost(err error) {
	o.l.Warn("lobby unavailable, resetting visit", log.ErrorField(err))
	o.hardReset("lobbyUnavailable", &Alert{Kind: AlertLobbyUnavailable, Message: err.Error()})
}

func (o *Orchestrator) launch() {
	o.v.launching = true
	o.v.launchFailed = false
	o.clearBanner(BannerLaunch)
	req := launcher.Request{
		Selection: o.v.selection.Clone(),
		Driver:    o.driverCopy(),
		Payment:   o.payment.Active(),
		Session:   o.v.session,
	}
	o.metrics.launch(o.ctx)
	gen := o.gen
	o.loop.Go(func() {
		ctx, cancel := context.WithTimeout(o.ctx, o.callTimeout)
		defer cancel()
		rec, err := o.launcher.Launch(ctx, req)
		o.loop.Post(func() {
			if gen != o.gen {
				o.metrics.staleDropped(o.ctx, "launch")
				if err == nil {
					o.l.Info("visit reset while launching, stopping station")
					o.stopStation()
				}
				return
			}
			o.launchDone(rec, err)
			o.publish()
		})
	})
}

func (o *Orchestrator) launchDone(rec *model.SessionRecord, err error) {
	o.v.launching = false
	if rec != nil {
		o.v.session = rec
	}
	if err != nil {
		var failure *launcher.Failure
		stage := ""
		if errors.As(err, &failure) {
			stage = failure.Stage
		}
		o.metrics.launchFailure(o.ctx, stage)
		o.v.launchFailed = true
		o.setBanner(Banner{Kind: BannerLaunch, Message: err.Error(), Retryable: true})
		return
	}
	o.enterLaunched()
}

// stopStation ends whatever runs on the station. It survives resets.
func (o *Orchestrator) stopStation() {
	o.background(func(ctx context.Context) func() {
		if err := o.launcher.Stop(ctx); err != nil {
			o.l.Warn("could not stop station", log.ErrorField(err))
		}
		return nil
	})
}

func (o *Orchestrator) enterLaunched() {
	o.v.launched = true
	o.stopVisitPolls()
	o.countdown.Start(o.v.selection.DurationMinutes)
	o.idle.Suppress(true)
}

// sessionExpired is called by the countdown when it reached zero.
func (o *Orchestrator) sessionExpired() {
	o.l.Info("session time elapsed")
	o.enterResults()
	o.publish()
}

func (o *Orchestrator) enterResults() {
	o.v.launched = false
	o.v.step = model.StepResults
	o.idle.Suppress(false)
	if o.v.session == nil {
		return
	}
	id := o.v.session.ID
	o.async(func(ctx context.Context) func() {
		res, err := o.launcher.Result(ctx, id)
		if err != nil {
			o.l.Warn("session result unavailable", log.String("session", id), log.ErrorField(err))
			return nil
		}
		return func() { o.v.result = res }
	})
}

func (o *Orchestrator) startHardwarePoll() {
	o.startPoll(pollHardware, o.stationID, o.intervals.Hardware, nil,
		func(ctx context.Context) func() {
			h, err := o.backend.HardwareStatus(ctx, o.stationID)
			if err != nil {
				o.l.Debug("hardware status unavailable", log.ErrorField(err))
				return nil
			}
			return func() { o.applyHardware(h) }
		})
	o.pollNow(pollHardware)
}

func (o *Orchestrator) applyHardware(h *model.HardwareStatus) {
	if o.hardware == nil || *o.hardware != *h {
		if h.Degraded() {
			o.l.Warn("hardware degraded", log.Strings("missing", h.Missing()))
		} else if o.hardware != nil {
			o.l.Info("hardware back to normal")
		}
	}
	o.hardware = h
}
