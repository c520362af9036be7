package kioskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/samber/lo"

	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/catalog"
	"github.com/mpapenbr/simkiosk/pkg/kiosk"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

const maxBodySize = 64 << 10

var errMalformed = errors.New("malformed request")

type (
	errorBody struct {
		Error string `json:"error"`
	}

	scenarioRequest struct {
		Origin          model.PickOrigin `json:"origin"`
		ScenarioID      string           `json:"scenarioId,omitempty"`
		DurationMinutes int              `json:"durationMinutes,omitempty"`
	}
	lobbyRequest struct {
		LobbyID string `json:"lobbyId"`
	}
	driverRequest struct {
		Name  string `json:"name"`
		Email string `json:"email,omitempty"`
	}
	carRequest struct {
		Car string `json:"car"`
	}
	trackRequest struct {
		Track string `json:"track"`
	}
	hostRequest struct {
		Enabled bool   `json:"enabled"`
		Name    string `json:"name,omitempty"`
	}
	providerRequest struct {
		Provider model.Provider `json:"provider"`
	}
	readyRequest struct {
		Ready bool `json:"ready"`
	}
	exitRequest struct {
		Confirmed bool `json:"confirmed"`
	}
)

// status codes for refused actions
var (
	conflictErrors = []error{
		kiosk.ErrWrongStep, kiosk.ErrLaunched, kiosk.ErrLaunching,
		kiosk.ErrSettled, kiosk.ErrLobbyPending,
		kiosk.ErrNothingToRetry, kiosk.ErrSettingsLocked,
	}
	invalidErrors = []error{
		kiosk.ErrContentIncomplete, kiosk.ErrNotAllowed, kiosk.ErrInvalidDuration,
		kiosk.ErrInvalidPick, kiosk.ErrInvalidSessionKind,
		kiosk.ErrDriverNameRequired, kiosk.ErrInvalidEmail,
		kiosk.ErrUnknownProvider, kiosk.ErrConfirmationRequired,
	}
	unavailableErrors = []error{
		backend.ErrUnavailable, backend.ErrLobbyUnavailable, catalog.ErrEmptyCatalog,
	}
)

//nolint:funlen // by design
func (s *Server) registerActions() map[string]actionFunc {
	k := s.k
	plain := func(fn func(ctx context.Context) error) actionFunc {
		return func(ctx context.Context, _ []byte) error { return fn(ctx) }
	}
	return map[string]actionFunc{
		"input":              plain(k.Input),
		"confirm-content":    plain(k.ConfirmContent),
		"confirm-difficulty": plain(k.ConfirmDifficulty),
		"retry-payment":      plain(k.RetryPayment),
		"force-start":        plain(k.ForceStart),
		"retry-launch":       plain(k.RetryLaunch),
		"back":               plain(k.Back),
		"reset":              plain(k.Reset),
		"finish":             plain(k.Finish),
		"select-scenario": func(ctx context.Context, body []byte) error {
			req, err := decode[scenarioRequest](body)
			if err != nil {
				return err
			}
			pick, err := s.pick(ctx, req)
			if err != nil {
				return err
			}
			return k.SelectScenario(ctx, pick)
		},
		"join-lobby": func(ctx context.Context, body []byte) error {
			req, err := decode[lobbyRequest](body)
			if err != nil {
				return err
			}
			return k.JoinLobby(ctx, req.LobbyID)
		},
		"submit-driver": func(ctx context.Context, body []byte) error {
			req, err := decode[driverRequest](body)
			if err != nil {
				return err
			}
			return k.SubmitDriver(ctx, req.Name, req.Email)
		},
		"select-car": func(ctx context.Context, body []byte) error {
			req, err := decode[carRequest](body)
			if err != nil {
				return err
			}
			return k.SelectCar(ctx, req.Car)
		},
		"select-track": func(ctx context.Context, body []byte) error {
			req, err := decode[trackRequest](body)
			if err != nil {
				return err
			}
			return k.SelectTrack(ctx, req.Track)
		},
		"configure-session": func(ctx context.Context, body []byte) error {
			req, err := decode[kiosk.SessionConfig](body)
			if err != nil {
				return err
			}
			return k.ConfigureSession(ctx, req)
		},
		"host-lobby": func(ctx context.Context, body []byte) error {
			req, err := decode[hostRequest](body)
			if err != nil {
				return err
			}
			return k.HostLobby(ctx, req.Enabled, req.Name)
		},
		"switch-provider": func(ctx context.Context, body []byte) error {
			req, err := decode[providerRequest](body)
			if err != nil {
				return err
			}
			return k.SwitchProvider(ctx, req.Provider)
		},
		"set-ready": func(ctx context.Context, body []byte) error {
			req, err := decode[readyRequest](body)
			if err != nil {
				return err
			}
			return k.SetReady(ctx, req.Ready)
		},
		"exit-session": func(ctx context.Context, body []byte) error {
			req, err := decode[exitRequest](body)
			if err != nil {
				return err
			}
			return k.ExitSession(ctx, req.Confirmed)
		},
	}
}

// pick resolves the scenario request against the catalog.
func (s *Server) pick(ctx context.Context, req scenarioRequest) (model.ScenarioPick, error) {
	switch req.Origin {
	case model.OriginStandard:
		if req.ScenarioID == "" {
			return model.ScenarioPick{}, kiosk.ErrInvalidPick
		}
		return s.cat.Standard(ctx, req.ScenarioID, req.DurationMinutes)
	case model.OriginDaily:
		return s.cat.Daily(ctx, req.DurationMinutes)
	case model.OriginSurprise:
		return s.cat.Surprise(ctx, s.k.View().Durations)
	default:
		return model.ScenarioPick{}, fmt.Errorf("%w: unknown origin %q",
			errMalformed, req.Origin)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
}

// decode reads a request body. An empty body yields the zero value.
func decode[T any](body []byte) (T, error) {
	var ret T
	if len(bytes.TrimSpace(body)) == 0 {
		return ret, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ret); err != nil {
		return ret, fmt.Errorf("%w: %w", errMalformed, err)
	}
	return ret, nil
}

func statusOf(err error) int {
	is := func(target error) bool { return errors.Is(err, target) }
	switch {
	case is(errMalformed):
		return http.StatusBadRequest
	case is(kiosk.ErrNotHost):
		return http.StatusForbidden
	case is(backend.ErrNotFound):
		return http.StatusNotFound
	case lo.ContainsBy(conflictErrors, is):
		return http.StatusConflict
	case lo.ContainsBy(invalidErrors, is):
		return http.StatusUnprocessableEntity
	case lo.ContainsBy(unavailableErrors, is):
		return http.StatusServiceUnavailable
	case is(context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
