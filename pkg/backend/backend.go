// Package backend describes the venue backend the kiosk talks to. The backend
// owns payments, sessions and lobbies; the kiosk only issues requests and
// mirrors the results.
package backend

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/simkiosk/pkg/model"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrRejected         = errors.New("request rejected")
	ErrUnavailable      = errors.New("backend unavailable")
	ErrLobbyUnavailable = errors.New("lobby unavailable")
)

type (
	CheckoutRequest struct {
		Provider        model.Provider `json:"provider"`
		StationID       string         `json:"stationId"`
		DurationMinutes int            `json:"durationMinutes"`
		DriverName      string         `json:"driverName,omitempty"`
		ScenarioID      string         `json:"scenarioId,omitempty"`
	}

	SessionStartRequest struct {
		StationID       string          `json:"stationId"`
		DriverName      string          `json:"driverName,omitempty"`
		DurationMinutes int             `json:"durationMinutes"`
		Price           decimal.Decimal `json:"price"`
		PaymentMethod   string          `json:"paymentMethod"`
	}

	LobbyCreateRequest struct {
		StationID       string            `json:"stationId"`
		Name            string            `json:"name"`
		Track           string            `json:"track"`
		Car             string            `json:"car"`
		DurationMinutes int               `json:"durationMinutes"`
		SessionKind     model.SessionKind `json:"sessionKind"`
		MaxPlayers      int               `json:"maxPlayers"`
	}

	PaymentService interface {
		Checkout(ctx context.Context, req CheckoutRequest) (*model.PaymentState, error)
		PaymentStatus(ctx context.Context, id string) (*model.PaymentState, error)
	}

	SessionService interface {
		SessionStart(ctx context.Context, req SessionStartRequest) (*model.SessionRecord, error)
		SessionResult(ctx context.Context, sessionID string) (*model.SessionResult, error)
	}

	StationService interface {
		//nolint:lll // readability
		StationLaunch(ctx context.Context, stationID string, payload model.LaunchPayload) error
		StationStop(ctx context.Context, stationID string) error
		HardwareStatus(ctx context.Context, stationID string) (*model.HardwareStatus, error)
	}

	LobbyService interface {
		LobbyCreate(ctx context.Context, req LobbyCreateRequest) (*model.LobbyRecord, error)
		LobbyJoin(ctx context.Context, lobbyID, stationID string) error
		LobbyReady(ctx context.Context, lobbyID, stationID string, ready bool) error
		LobbyStart(ctx context.Context, lobbyID, requestingStationID string) error
		Lobby(ctx context.Context, lobbyID string) (*model.LobbyRecord, error)
		Lobbies(ctx context.Context) ([]model.LobbyRecord, error)
	}

	CatalogService interface {
		Scenarios(ctx context.Context) ([]model.Scenario, error)
		Scenario(ctx context.Context, id string) (*model.Scenario, error)
		DailyChallenge(ctx context.Context) (*model.Scenario, error)
		Content(ctx context.Context) (*model.Content, error)
	}

	// Backend is the complete contract of the venue backend.
	Backend interface {
		PaymentService
		SessionService
		StationService
		LobbyService
		CatalogService
		Version(ctx context.Context) (string, error)
	}

	// LobbyFeed delivers status transitions of a lobby as they happen.
	// The callback is invoked on an arbitrary goroutine.
	LobbyFeed interface {
		//nolint:lll // readability
		SubscribeLobby(lobbyID string, fn func(model.LobbyStatus)) (unsubscribe func(), err error)
	}
)
