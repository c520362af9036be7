package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type HardwareStatus struct {
	IsOnline        bool `json:"isOnline"`
	WheelConnected  bool `json:"wheelConnected"`
	PedalsConnected bool `json:"pedalsConnected"`
}

// Missing lists the peripherals that are not available.
func (h HardwareStatus) Missing() []string {
	if !h.IsOnline {
		return []string{"station"}
	}
	ret := []string{}
	if !h.WheelConnected {
		ret = append(ret, "wheel")
	}
	if !h.PedalsConnected {
		ret = append(ret, "pedals")
	}
	return ret
}

func (h HardwareStatus) Degraded() bool {
	return len(h.Missing()) > 0
}

// SessionRecord is created by the backend when a session starts.
type SessionRecord struct {
	ID              string          `json:"id"`
	StationID       string          `json:"stationId"`
	DriverName      string          `json:"driverName,omitempty"`
	DurationMinutes int             `json:"durationMinutes"`
	Price           decimal.Decimal `json:"price"`
	PaymentMethod   string          `json:"paymentMethod"`
	StartedAt       time.Time       `json:"startedAt"`
}

// LaunchPayload is the control command sent to the station software.
type LaunchPayload struct {
	StationID       string      `json:"stationId"`
	SessionID       string      `json:"sessionId,omitempty"`
	DriverID        string      `json:"driverId"`
	DriverName      string      `json:"driverName"`
	Car             string      `json:"car"`
	Track           string      `json:"track"`
	SessionKind     SessionKind `json:"sessionKind"`
	DurationMinutes int         `json:"durationMinutes"`
	Weather         string      `json:"weather"`
	TimeOfDay       string      `json:"timeOfDay"`
	ScenarioID      string      `json:"scenarioId,omitempty"`
	LobbyID         string      `json:"lobbyId,omitempty"`
}

type SessionResult struct {
	SessionID     string `json:"sessionId"`
	Laps          int    `json:"laps"`
	BestLapMillis int64  `json:"bestLapMillis"`
	Incidents     int    `json:"incidents"`
}
