package model

import (
	"time"

	"github.com/samber/lo"
)

type LobbyStatus string

const (
	LobbyWaiting  LobbyStatus = "waiting"
	LobbyRunning  LobbyStatus = "running"
	LobbyFinished LobbyStatus = "finished"
)

type LobbyPlayer struct {
	StationID string `json:"stationId"`
	Slot      int    `json:"slot"`
	Ready     bool   `json:"ready"`
}

// LobbyRecord is owned by the backend, the kiosk keeps a mirror.
type LobbyRecord struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	HostStationID   string        `json:"hostStationId"`
	Status          LobbyStatus   `json:"status"`
	Players         []LobbyPlayer `json:"players"`
	CreatedAt       time.Time     `json:"createdAt"`
	MaxPlayers      int           `json:"maxPlayers"`
	Car             string        `json:"car"`
	Track           string        `json:"track"`
	DurationMinutes int           `json:"durationMinutes"`
	SessionKind     SessionKind   `json:"sessionKind"`
}

func (l *LobbyRecord) Full() bool {
	return l.MaxPlayers > 0 && len(l.Players) >= l.MaxPlayers
}

// Joinable reports whether another station may enter the room.
func (l *LobbyRecord) Joinable() bool {
	return l.Status == LobbyWaiting && !l.Full()
}

func (l *LobbyRecord) HasPlayer(stationID string) bool {
	return lo.ContainsBy(l.Players, func(p LobbyPlayer) bool {
		return p.StationID == stationID
	})
}

func (l *LobbyRecord) ReadyCount() int {
	return lo.CountBy(l.Players, func(p LobbyPlayer) bool { return p.Ready })
}

// Age is the time since creation relative to now.
func (l *LobbyRecord) Age(now time.Time) time.Duration {
	return now.Sub(l.CreatedAt)
}

func (l *LobbyRecord) Clone() *LobbyRecord {
	if l == nil {
		return nil
	}
	ret := *l
	ret.Players = append([]LobbyPlayer(nil), l.Players...)
	return &ret
}
