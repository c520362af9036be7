package kiosk

import (
	"context"
	"net/mail"
	"strings"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/lobby"
	"github.com/mpapenbr/simkiosk/pkg/model"
	"github.com/mpapenbr/simkiosk/pkg/venue"
)

// SessionConfig holds the difficulty settings. Zero values keep the current
// setting.
type SessionConfig struct {
	DurationMinutes int               `json:"durationMinutes,omitempty"`
	SessionKind     model.SessionKind `json:"sessionKind,omitempty"`
	Weather         string            `json:"weather,omitempty"`
	TimeOfDay       string            `json:"timeOfDay,omitempty"`
}

// Input records customer activity without changing the visit.
func (o *Orchestrator) Input(ctx context.Context) error {
	return o.act(ctx, "input", func() error { return nil })
}

// SelectScenario applies a standard, daily or surprise pick and moves on to
// the driver step.
func (o *Orchestrator) SelectScenario(ctx context.Context, pick model.ScenarioPick) error {
	return o.act(ctx, "selectScenario", func() error {
		if err := o.expect(model.StepScenario); err != nil {
			return err
		}
		sel, err := o.selectionFor(pick)
		if err != nil {
			return err
		}
		o.v.selection = sel
		o.v.scenario = pick.Scenario
		o.l.Info("scenario selected",
			log.String("origin", string(pick.Origin)),
			log.String("scenario", sel.ScenarioID),
			log.Int("duration", sel.DurationMinutes))
		return o.advance()
	})
}

func (o *Orchestrator) selectionFor(pick model.ScenarioPick) (model.Selection, error) {
	sel := model.NewSelection()
	if pick.DurationMinutes <= 0 {
		return sel, ErrInvalidPick
	}
	sel.DurationMinutes = pick.DurationMinutes
	sel.Car, sel.Track = pick.Car, pick.Track
	kind := pick.SessionKind
	if s := pick.Scenario; s != nil {
		sel.ScenarioID = s.ID
		if kind == "" {
			kind = s.SessionKind
		}
		car, track := s.Prefill()
		if sel.Car == "" {
			sel.Car = car
		}
		if sel.Track == "" {
			sel.Track = track
		}
		if (sel.Car != "" && !s.AllowsCar(sel.Car)) ||
			(sel.Track != "" && !s.AllowsTrack(sel.Track)) {
			return sel, ErrNotAllowed
		}
	}
	if !o.durationAllowed(pick.Scenario, sel.DurationMinutes) {
		return sel, ErrInvalidDuration
	}
	if kind != "" {
		if !kind.Valid() {
			return sel, ErrInvalidSessionKind
		}
		sel.SessionKind = kind
	}
	return sel, nil
}

// durationAllowed checks against the scenario if it restricts durations,
// otherwise against the venue.
func (o *Orchestrator) durationAllowed(s *model.Scenario, minutes int) bool {
	if minutes <= 0 {
		return false
	}
	if s != nil && len(s.Durations) > 0 {
		return s.AllowsDuration(minutes)
	}
	return o.venue.OffersDuration(minutes)
}

// JoinLobby starts a visit as guest of a live lobby. The lobby details are
// fetched in the background, a lobby that is gone resets the visit.
func (o *Orchestrator) JoinLobby(ctx context.Context, lobbyID string) error {
	return o.act(ctx, "joinLobby", func() error {
		if err := o.expect(model.StepScenario); err != nil {
			return err
		}
		if lobbyID == "" {
			return ErrInvalidPick
		}
		o.v.selection = model.NewSelection()
		o.v.selection.Lobby = &model.LobbyLink{ID: lobbyID}
		o.async(func(ctx context.Context) func() {
			rec, err := o.lobby.Fetch(ctx, lobbyID)
			return func() { o.applyPreview(lobbyID, rec, err) }
		})
		return o.advance()
	})
}

//nolint:whitespace // can't make both editor and linter happy
func (o *Orchestrator) applyPreview(
	lobbyID string, rec *model.LobbyRecord, err error,
) {
	if !o.v.selection.IsJoiner() || o.v.selection.Lobby.ID != lobbyID {
		return
	}
	if err == nil && !rec.Joinable() {
		err = &lobby.UnavailableError{LobbyID: lobbyID, Cause: errLobbyClosed}
	}
	if err != nil {
		o.lobbyLost(err)
		return
	}
	o.v.preview = rec.Clone()
	sel := &o.v.selection
	sel.Car = rec.Car
	sel.Track = rec.Track
	sel.DurationMinutes = rec.DurationMinutes
	if rec.SessionKind.Valid() {
		sel.SessionKind = rec.SessionKind
	}
	sel.Lobby.Name = rec.Name
}

// SubmitDriver registers the driver. Submitting again replaces name and
// email but keeps the driver id of the visit.
func (o *Orchestrator) SubmitDriver(ctx context.Context, name, email string) error {
	return o.act(ctx, "submitDriver", func() error {
		if err := o.expect(model.StepDriver); err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		email = strings.TrimSpace(email)
		if name == "" {
			return ErrDriverNameRequired
		}
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return ErrInvalidEmail
			}
		}
		if o.v.driver == nil {
			o.v.driver = &model.Driver{ID: o.newID()}
		}
		o.v.driver.Name = name
		o.v.driver.Email = email
		return o.advance()
	})
}

func (o *Orchestrator) SelectCar(ctx context.Context, car string) error {
	return o.act(ctx, "selectCar", func() error {
		if err := o.expect(model.StepContent); err != nil {
			return err
		}
		if car == "" {
			return ErrContentIncomplete
		}
		if o.v.scenario != nil && !o.v.scenario.AllowsCar(car) {
			return ErrNotAllowed
		}
		o.v.selection.Car = car
		return nil
	})
}

func (o *Orchestrator) SelectTrack(ctx context.Context, track string) error {
	return o.act(ctx, "selectTrack", func() error {
		if err := o.expect(model.StepContent); err != nil {
			return err
		}
		if track == "" {
			return ErrContentIncomplete
		}
		if o.v.scenario != nil && !o.v.scenario.AllowsTrack(track) {
			return ErrNotAllowed
		}
		o.v.selection.Track = track
		return nil
	})
}

func (o *Orchestrator) ConfirmContent(ctx context.Context) error {
	return o.act(ctx, "confirmContent", func() error {
		if err := o.expect(model.StepContent); err != nil {
			return err
		}
		if !o.v.selection.HasContent() {
			return ErrContentIncomplete
		}
		return o.advance()
	})
}

// difficultyEditable is the common guard of the difficulty settings.
func (o *Orchestrator) difficultyEditable() error {
	if err := o.expect(model.StepDifficulty); err != nil {
		return err
	}
	if o.v.launching {
		return ErrLaunching
	}
	if o.payment.Active().Settled() {
		return ErrSettled
	}
	if o.v.selection.IsJoiner() {
		return ErrSettingsLocked
	}
	return nil
}

func (o *Orchestrator) ConfigureSession(ctx context.Context, cfg SessionConfig) error {
	return o.act(ctx, "configureSession", func() error {
		if err := o.difficultyEditable(); err != nil {
			return err
		}
		sel := o.v.selection
		if cfg.DurationMinutes != 0 {
			if !o.durationAllowed(o.v.scenario, cfg.DurationMinutes) {
				return ErrInvalidDuration
			}
			sel.DurationMinutes = cfg.DurationMinutes
		}
		if cfg.SessionKind != "" {
			if !cfg.SessionKind.Valid() {
				return ErrInvalidSessionKind
			}
			if s := o.v.scenario; s != nil && s.SessionKind != "" && s.SessionKind != cfg.SessionKind {
				return ErrNotAllowed
			}
			sel.SessionKind = cfg.SessionKind
		}
		if cfg.Weather != "" {
			sel.Weather = cfg.Weather
		}
		if cfg.TimeOfDay != "" {
			sel.TimeOfDay = cfg.TimeOfDay
		}
		o.v.selection = sel
		return nil
	})
}

// HostLobby opts in (or out) of hosting a multiplayer room. The room is
// created once the visit is settled.
func (o *Orchestrator) HostLobby(ctx context.Context, enabled bool, name string) error {
	return o.act(ctx, "hostLobby", func() error {
		if err := o.difficultyEditable(); err != nil {
			return err
		}
		if !enabled {
			o.v.selection.Lobby = nil
			return nil
		}
		o.v.selection.Lobby = &model.LobbyLink{Name: strings.TrimSpace(name), IsHost: true}
		return nil
	})
}

// ConfirmDifficulty leaves the difficulty step, either to payment or, when
// the venue does not charge, straight to settlement.
func (o *Orchestrator) ConfirmDifficulty(ctx context.Context) error {
	return o.act(ctx, "confirmDifficulty", func() error {
		if err := o.expect(model.StepDifficulty); err != nil {
			return err
		}
		switch {
		case o.v.launching:
			return ErrLaunching
		case o.payment.Active().Settled():
			return ErrSettled
		case o.v.selection.IsJoiner() && o.v.preview == nil:
			return ErrLobbyPending
		case o.v.selection.DurationMinutes <= 0:
			return ErrInvalidDuration
		case !o.v.selection.ReadyForPayment():
			return ErrContentIncomplete
		}
		return o.advance()
	})
}

// SwitchProvider supersedes the current checkout with one at provider p.
func (o *Orchestrator) SwitchProvider(ctx context.Context, p model.Provider) error {
	return o.act(ctx, "switchProvider", func() error {
		if err := o.paymentEditable(); err != nil {
			return err
		}
		if !p.Valid() {
			return ErrUnknownProvider
		}
		o.provider = p
		o.startCheckout()
		return nil
	})
}

// RetryPayment issues a new checkout at the current provider.
func (o *Orchestrator) RetryPayment(ctx context.Context) error {
	return o.act(ctx, "retryPayment", func() error {
		if err := o.paymentEditable(); err != nil {
			return err
		}
		o.startCheckout()
		return nil
	})
}

func (o *Orchestrator) paymentEditable() error {
	if err := o.expect(model.StepPayment); err != nil {
		return err
	}
	if o.payment.Active().Settled() {
		return ErrSettled
	}
	return nil
}

// SetReady toggles the readiness of this station in the waiting room.
func (o *Orchestrator) SetReady(ctx context.Context, ready bool) error {
	return o.act(ctx, "setReady", func() error {
		if err := o.expect(model.StepWaitingRoom); err != nil {
			return err
		}
		id := o.lobby.ID()
		o.async(func(ctx context.Context) func() {
			err := o.lobby.Ready(ctx, id, ready)
			return func() { o.lobbyCallDone(err) }
		})
		return nil
	})
}

// ForceStart starts the waiting room. Only the host may do so.
func (o *Orchestrator) ForceStart(ctx context.Context) error {
	return o.act(ctx, "forceStart", func() error {
		if err := o.expect(model.StepWaitingRoom); err != nil {
			return err
		}
		if !o.lobby.IsHost() {
			return ErrNotHost
		}
		o.startLobby(false)
		return nil
	})
}

// RetryLaunch repeats a failed launch. The settled payment and an already
// registered session are reused.
func (o *Orchestrator) RetryLaunch(ctx context.Context) error {
	return o.act(ctx, "retryLaunch", func() error {
		if o.v.launched {
			return ErrLaunched
		}
		if o.v.launching {
			return ErrLaunching
		}
		if !o.v.launchFailed {
			return ErrNothingToRetry
		}
		o.launch()
		return nil
	})
}

// ExitSession ends a running session early. confirmed must be true.
func (o *Orchestrator) ExitSession(ctx context.Context, confirmed bool) error {
	return o.act(ctx, "exitSession", func() error {
		if !o.v.launched {
			return ErrWrongStep
		}
		if !confirmed {
			return ErrConfirmationRequired
		}
		o.countdown.Stop()
		o.stopStation()
		o.enterResults()
		return nil
	})
}

func (o *Orchestrator) Back(ctx context.Context) error {
	return o.act(ctx, "back", o.retreat)
}

// Reset abandons the visit from any state.
func (o *Orchestrator) Reset(ctx context.Context) error {
	return o.act(ctx, "reset", func() error {
		o.hardReset("reset", nil)
		return nil
	})
}

// Finish closes the results and starts over.
func (o *Orchestrator) Finish(ctx context.Context) error {
	return o.act(ctx, "finish", func() error {
		if err := o.expect(model.StepResults); err != nil {
			return err
		}
		o.hardReset("finish", nil)
		return nil
	})
}

// UpdateVenue applies changed venue settings. A visit in progress keeps its
// selection, new settings take effect where they are consulted next.
func (o *Orchestrator) UpdateVenue(ctx context.Context, s venue.Settings) error {
	s, err := s.Normalize()
	if err != nil {
		return err
	}
	return o.loop.Call(ctx, func() {
		o.venue = s
		o.idle.SetTimeout(s.IdleTimeout)
		if o.v.step == model.StepScenario {
			o.provider = s.DefaultProvider
		}
		o.l.Info("venue settings updated",
			log.String("venue", s.Name), log.Bool("payment", s.PaymentEnabled))
		o.publish()
	})
}
