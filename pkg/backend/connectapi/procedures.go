// Package connectapi exposes the venue backend over the connect protocol.
// The client is used by the kiosk, the handler by the backend simulator.
package connectapi

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

const (
	ProcVersion        = "/kiosk.v1.InfoService/Version"
	ProcCheckout       = "/kiosk.v1.PaymentService/Checkout"
	ProcPaymentStatus  = "/kiosk.v1.PaymentService/PaymentStatus"
	ProcSessionStart   = "/kiosk.v1.SessionService/SessionStart"
	ProcSessionResult  = "/kiosk.v1.SessionService/SessionResult"
	ProcStationLaunch  = "/kiosk.v1.StationService/StationLaunch"
	ProcStationStop    = "/kiosk.v1.StationService/StationStop"
	ProcHardwareStatus = "/kiosk.v1.StationService/HardwareStatus"
	ProcLobbyCreate    = "/kiosk.v1.LobbyService/LobbyCreate"
	ProcLobbyJoin      = "/kiosk.v1.LobbyService/LobbyJoin"
	ProcLobbyReady     = "/kiosk.v1.LobbyService/LobbyReady"
	ProcLobbyStart     = "/kiosk.v1.LobbyService/LobbyStart"
	ProcLobby          = "/kiosk.v1.LobbyService/Lobby"
	ProcLobbies        = "/kiosk.v1.LobbyService/Lobbies"
	ProcScenarios      = "/kiosk.v1.CatalogService/Scenarios"
	ProcScenario       = "/kiosk.v1.CatalogService/Scenario"
	ProcDailyChallenge = "/kiosk.v1.CatalogService/DailyChallenge"
	ProcContent        = "/kiosk.v1.CatalogService/Content"
)

type (
	empty struct{}

	idRequest struct {
		ID string `json:"id"`
	}
	stationRequest struct {
		StationID string `json:"stationId"`
	}
	launchRequest struct {
		StationID string              `json:"stationId"`
		Payload   model.LaunchPayload `json:"payload"`
	}
	lobbyRequest struct {
		LobbyID   string `json:"lobbyId"`
		StationID string `json:"stationId"`
		Ready     bool   `json:"ready,omitempty"`
	}
	lobbiesResponse struct {
		Lobbies []model.LobbyRecord `json:"lobbies"`
	}
	scenariosResponse struct {
		Scenarios []model.Scenario `json:"scenarios"`
	}
	versionResponse struct {
		Version string `json:"version"`
	}
)

var codeMapping = []struct {
	sentinel error
	code     connect.Code
}{
	{backend.ErrNotFound, connect.CodeNotFound},
	{backend.ErrRejected, connect.CodeInvalidArgument},
	{backend.ErrLobbyUnavailable, connect.CodeFailedPrecondition},
	{backend.ErrUnavailable, connect.CodeUnavailable},
}

func toConnectError(err error) error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	for _, m := range codeMapping {
		if errors.Is(err, m.sentinel) {
			return connect.NewError(m.code, err)
		}
	}
	return connect.NewError(connect.CodeInternal, err)
}

// fromConnectError restores the backend sentinel so callers can use
// errors.Is regardless of the transport.
func fromConnectError(err error) error {
	code := connect.CodeOf(err)
	msg := err.Error()
	var ce *connect.Error
	if errors.As(err, &ce) {
		msg = ce.Message()
	}
	switch code {
	case connect.CodeNotFound:
		return fmt.Errorf("%w: %s", backend.ErrNotFound, msg)
	case connect.CodeInvalidArgument, connect.CodePermissionDenied, connect.CodeUnauthenticated:
		return fmt.Errorf("%w: %s", backend.ErrRejected, msg)
	case connect.CodeFailedPrecondition:
		return fmt.Errorf("%w: %s", backend.ErrLobbyUnavailable, msg)
	default:
		return fmt.Errorf("%w: %s", backend.ErrUnavailable, msg)
	}
}
