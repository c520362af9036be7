// Package launcher starts the racing session on the physical station.
package launcher

import (
	"context"
	"fmt"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

type (
	// Failure is a failed launch. Session holds the session record if it was
	// already created, a retry reuses it instead of registering a new one.
	Failure struct {
		StationID string
		Stage     string
		Session   *model.SessionRecord
		Cause     error
	}

	Request struct {
		Selection model.Selection
		Driver    *model.Driver
		Payment   *model.PaymentState
		// Session is set when retrying a launch whose session already exists.
		Session *model.SessionRecord
	}

	Launcher struct {
		sessions  backend.SessionService
		station   backend.StationService
		stationID string
		l         *log.Logger
	}
	Option func(*Launcher)

	// Latch guards a one-shot side effect. Not safe for concurrent use.
	Latch struct {
		fired bool
	}
)

const (
	StageSession = "sessionStart"
	StageStation = "stationLaunch"
)

func (f *Failure) Error() string {
	return fmt.Sprintf("launch on station %s failed at %s: %v", f.StationID, f.Stage, f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

//nolint:whitespace // can't make both editor and linter happy
func New(
	sessions backend.SessionService,
	station backend.StationService,
	stationID string,
	opts ...Option,
) *Launcher {
	ret := &Launcher{
		sessions:  sessions,
		station:   station,
		stationID: stationID,
		l:         log.Default().Named("kiosk.launcher"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(x *Launcher) {
		x.l = l
	}
}

// BuildPayload derives the launch command from the visit. Equal inputs give
// equal payloads.
//
//nolint:whitespace // can't make both editor and linter happy
func BuildPayload(
	stationID string, sel model.Selection, driver *model.Driver, sessionID string,
) model.LaunchPayload {
	ret := model.LaunchPayload{
		StationID:       stationID,
		SessionID:       sessionID,
		Car:             sel.Car,
		Track:           sel.Track,
		SessionKind:     sel.SessionKind,
		DurationMinutes: sel.DurationMinutes,
		Weather:         sel.Weather,
		TimeOfDay:       sel.TimeOfDay,
		ScenarioID:      sel.ScenarioID,
	}
	if driver != nil {
		ret.DriverID = driver.ID
		ret.DriverName = driver.Name
	}
	if sel.Lobby != nil {
		ret.LobbyID = sel.Lobby.ID
	}
	return ret
}

// Launch registers the session (unless req carries one) and triggers the
// station. Blocking. It never retries on its own.
//
//nolint:whitespace // can't make both editor and linter happy
func (x *Launcher) Launch(
	ctx context.Context, req Request,
) (*model.SessionRecord, error) {
	rec := req.Session
	if rec == nil {
		start := backend.SessionStartRequest{
			StationID:       x.stationID,
			DurationMinutes: req.Selection.DurationMinutes,
			PaymentMethod:   req.Payment.PaymentMethod(),
		}
		if req.Driver != nil {
			start.DriverName = req.Driver.Name
		}
		if req.Payment != nil {
			start.Price = req.Payment.Amount
		}
		var err error
		if rec, err = x.sessions.SessionStart(ctx, start); err != nil {
			x.l.Error("could not register session", log.ErrorField(err))
			return nil, &Failure{StationID: x.stationID, Stage: StageSession, Cause: err}
		}
	}
	payload := BuildPayload(x.stationID, req.Selection, req.Driver, rec.ID)
	if err := x.station.StationLaunch(ctx, x.stationID, payload); err != nil {
		x.l.Error("station launch failed",
			log.String("session", rec.ID), log.ErrorField(err))
		return rec, &Failure{StationID: x.stationID, Stage: StageStation, Session: rec, Cause: err}
	}
	x.l.Info("session launched",
		log.String("session", rec.ID),
		log.String("car", payload.Car),
		log.String("track", payload.Track),
		log.Int("duration", payload.DurationMinutes))
	return rec, nil
}

// Stop ends the running session on the station. Blocking.
func (x *Launcher) Stop(ctx context.Context) error {
	return x.station.StationStop(ctx, x.stationID)
}

// Result fetches the outcome of a finished session. Blocking.
//
//nolint:whitespace // can't make both editor and linter happy
func (x *Launcher) Result(
	ctx context.Context, sessionID string,
) (*model.SessionResult, error) {
	return x.sessions.SessionResult(ctx, sessionID)
}

// Claim returns true on the first call after creation or Reset.
func (l *Latch) Claim() bool {
	if l.fired {
		return false
	}
	l.fired = true
	return true
}

func (l *Latch) Fired() bool {
	return l.fired
}

func (l *Latch) Reset() {
	l.fired = false
}
