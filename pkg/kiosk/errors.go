package kiosk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mpapenbr/simkiosk/pkg/launcher"
	"github.com/mpapenbr/simkiosk/pkg/lobby"
	"github.com/mpapenbr/simkiosk/pkg/payment"
)

// errors returned for customer actions that are not possible right now
var (
	ErrWrongStep            = errors.New("action not available in this step")
	ErrLaunched             = errors.New("a session is running")
	ErrLaunching            = errors.New("the session is being launched")
	ErrSettled              = errors.New("payment already settled")
	ErrContentIncomplete    = errors.New("car and track are required")
	ErrNotAllowed           = errors.New("not allowed by the scenario")
	ErrInvalidDuration      = errors.New("session duration not offered")
	ErrInvalidPick          = errors.New("incomplete scenario pick")
	ErrInvalidSessionKind   = errors.New("unknown session kind")
	ErrDriverNameRequired   = errors.New("driver name is required")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrSettingsLocked       = errors.New("settings are defined by the lobby host")
	ErrLobbyPending         = errors.New("lobby details not loaded yet")
	ErrUnknownProvider      = errors.New("payment provider not available")
	ErrNotHost              = errors.New("only the host can start the lobby")
	ErrNothingToRetry       = errors.New("nothing to retry")
	ErrConfirmationRequired = errors.New("confirmation required")
	errNoTransition         = errors.New("no transition")
	errLobbyClosed          = errors.New("lobby no longer accepts players")
)

type (
	// CheckoutError is a failed checkout. Non-fatal, the customer may retry.
	CheckoutError = payment.CheckoutError
	// LobbyUnavailableError forces a hard reset of the visit.
	LobbyUnavailableError = lobby.UnavailableError
	// LaunchFailure is a failed session launch. Retrying never re-pays.
	LaunchFailure = launcher.Failure
)

// HardwareDegraded is informational. It never blocks the flow.
type HardwareDegraded struct {
	Missing []string
}

func (h *HardwareDegraded) Error() string {
	if len(h.Missing) == 1 && h.Missing[0] == "station" {
		return "station offline"
	}
	return fmt.Sprintf("%s not connected", strings.Join(h.Missing, " and "))
}
