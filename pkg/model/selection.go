package model

import "github.com/samber/lo"

type SessionKind string

const (
	KindPractice SessionKind = "practice"
	KindQualify  SessionKind = "qualify"
	KindRace     SessionKind = "race"
	KindHotlap   SessionKind = "hotlap"
	KindDrift    SessionKind = "drift"
	KindTrackday SessionKind = "trackday"
	KindTraffic  SessionKind = "traffic"
	KindOvertake SessionKind = "overtake"
)

var sessionKinds = []SessionKind{
	KindPractice, KindQualify, KindRace, KindHotlap,
	KindDrift, KindTrackday, KindTraffic, KindOvertake,
}

func (k SessionKind) Valid() bool {
	return lo.Contains(sessionKinds, k)
}

const (
	DefaultWeather   = "clear"
	DefaultTimeOfDay = "noon"
)

// LobbyLink connects a selection to a multiplayer room.
// ID is empty for a host until the room has been created.
type LobbyLink struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	IsHost bool   `json:"isHost"`
}

// Selection describes what the customer intends to drive.
type Selection struct {
	Car             string      `json:"car"`
	Track           string      `json:"track"`
	SessionKind     SessionKind `json:"sessionKind"`
	ScenarioID      string      `json:"scenarioId,omitempty"`
	Lobby           *LobbyLink  `json:"lobby,omitempty"`
	Weather         string      `json:"weather"`
	TimeOfDay       string      `json:"timeOfDay"`
	DurationMinutes int         `json:"durationMinutes"`
}

func NewSelection() Selection {
	return Selection{
		SessionKind: KindPractice,
		Weather:     DefaultWeather,
		TimeOfDay:   DefaultTimeOfDay,
	}
}

func (s Selection) HasContent() bool {
	return s.Car != "" && s.Track != ""
}

// IsJoiner reports whether the customer joins a room hosted by another station.
func (s Selection) IsJoiner() bool {
	return s.Lobby != nil && !s.Lobby.IsHost
}

func (s Selection) IsHost() bool {
	return s.Lobby != nil && s.Lobby.IsHost
}

// ReadyForPayment checks the invariant that content is chosen before payment.
// Joiners inherit the content from the host's room.
func (s Selection) ReadyForPayment() bool {
	if s.DurationMinutes <= 0 {
		return false
	}
	return s.HasContent() || s.IsJoiner()
}

// Clone returns a copy that does not share the lobby link.
func (s Selection) Clone() Selection {
	ret := s
	if s.Lobby != nil {
		l := *s.Lobby
		ret.Lobby = &l
	}
	return ret
}
