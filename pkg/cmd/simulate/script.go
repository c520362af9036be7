package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/simkiosk/pkg/catalog"
	"github.com/mpapenbr/simkiosk/pkg/kiosk"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

var errNoContent = errors.New("scenario allows no installed content")

// script describes the visit of one simulated customer.
type script struct {
	Origin          model.PickOrigin
	ScenarioID      string
	DurationMinutes int
	DriverName      string
	DriverEmail     string
	ExitAfter       time.Duration
	Timeout         time.Duration
}

// run walks through a complete visit and returns the session result.
//
//nolint:whitespace,cyclop // can't make both editor and linter happy
func (s script) run(
	ctx context.Context, k *kiosk.Orchestrator, cat *catalog.Catalog,
) (*model.SessionResult, error) {
	if err := waitFor(ctx, k, "scenario step", func(v kiosk.View) (bool, error) {
		return v.Step == model.StepScenario, nil
	}); err != nil {
		return nil, err
	}
	pick, err := s.pick(ctx, k, cat)
	if err != nil {
		return nil, err
	}
	if err = k.SelectScenario(ctx, pick); err != nil {
		return nil, err
	}
	if err = k.SubmitDriver(ctx, s.DriverName, s.DriverEmail); err != nil {
		return nil, err
	}
	if k.View().Step == model.StepContent {
		if err = chooseContent(ctx, k, cat, pick.Scenario); err != nil {
			return nil, err
		}
	}
	if err = k.ConfirmDifficulty(ctx); err != nil {
		return nil, err
	}
	if err = waitFor(ctx, k, "launch", func(v kiosk.View) (bool, error) {
		if b, ok := blocking(v); ok {
			return false, fmt.Errorf("%s: %s", b.Kind, b.Message)
		}
		return v.Launched, nil
	}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.ExitAfter):
	}
	if err = k.ExitSession(ctx, true); err != nil {
		return nil, err
	}

	var res *model.SessionResult
	if err = waitFor(ctx, k, "results", func(v kiosk.View) (bool, error) {
		res = v.Result
		return v.Step == model.StepResults && v.Result != nil, nil
	}); err != nil {
		return nil, err
	}
	return res, k.Finish(ctx)
}

//nolint:whitespace // can't make both editor and linter happy
func (s script) pick(
	ctx context.Context, k *kiosk.Orchestrator, cat *catalog.Catalog,
) (model.ScenarioPick, error) {
	switch s.Origin {
	case model.OriginStandard:
		return cat.Standard(ctx, s.ScenarioID, s.DurationMinutes)
	case model.OriginDaily:
		return cat.Daily(ctx, s.DurationMinutes)
	case model.OriginSurprise:
		return cat.Surprise(ctx, k.View().Durations)
	default:
		return model.ScenarioPick{}, fmt.Errorf("unknown origin %q", s.Origin)
	}
}

// chooseContent selects the first installed car and track the scenario
// allows.
//
//nolint:whitespace // can't make both editor and linter happy
func chooseContent(
	ctx context.Context, k *kiosk.Orchestrator, cat *catalog.Catalog, sc *model.Scenario,
) error {
	content, err := cat.Content(ctx)
	if err != nil {
		return err
	}
	allowCar := func(string) bool { return true }
	allowTrack := allowCar
	if sc != nil {
		allowCar, allowTrack = sc.AllowsCar, sc.AllowsTrack
	}
	car, carOk := lo.Find(content.Cars, allowCar)
	track, trackOk := lo.Find(content.Tracks, allowTrack)
	if !carOk || !trackOk {
		return errNoContent
	}
	sel := k.View().Selection
	if sel.Car == "" {
		if err := k.SelectCar(ctx, car); err != nil {
			return err
		}
	}
	if sel.Track == "" {
		if err := k.SelectTrack(ctx, track); err != nil {
			return err
		}
	}
	return k.ConfirmContent(ctx)
}

// blocking returns the first banner that stops the visit from progressing
// without customer action.
func blocking(v kiosk.View) (kiosk.Banner, bool) {
	return lo.Find(v.Banners, func(b kiosk.Banner) bool {
		return b.Kind != kiosk.BannerHardware
	})
}

// waitFor returns once cond holds for the current view. Views are checked
// as they are published and on a short interval, since slow subscribers may
// miss some.
//
//nolint:whitespace // can't make both editor and linter happy
func waitFor(
	ctx context.Context, k *kiosk.Orchestrator, what string,
	cond func(kiosk.View) (bool, error),
) error {
	ch := k.Subscribe()
	defer k.Unsubscribe(ch)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	v := k.View()
	for {
		done, err := cond(v)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", what, err)
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
		case next, ok := <-ch:
			if !ok {
				return fmt.Errorf("waiting for %s: kiosk closed", what)
			}
			v = next
		case <-ticker.C:
			v = k.View()
		}
	}
}
