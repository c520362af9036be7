package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScenario_Prefill(t *testing.T) {
	tests := []struct {
		name      string
		scenario  Scenario
		wantCar   string
		wantTrack string
	}{
		{
			name:     "no restriction",
			scenario: Scenario{ID: "free"},
		},
		{
			name:      "explicit defaults",
			scenario:  Scenario{Cars: []string{"gt3", "f4"}, DefaultCar: "gt3", DefaultTrack: "spa"},
			wantCar:   "gt3",
			wantTrack: "spa",
		},
		{
			name:      "single allowed values",
			scenario:  Scenario{Cars: []string{"mx5"}, Tracks: []string{"monza"}},
			wantCar:   "mx5",
			wantTrack: "monza",
		},
		{
			name:     "only car fixed",
			scenario: Scenario{Cars: []string{"mx5"}, Tracks: []string{"monza", "spa"}},
			wantCar:  "mx5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			car, track := tt.scenario.Prefill()
			assert.Equal(t, tt.wantCar, car)
			assert.Equal(t, tt.wantTrack, track)
		})
	}
}

func TestSelection_ReadyForPayment(t *testing.T) {
	s := NewSelection()
	assert.False(t, s.ReadyForPayment())

	s.DurationMinutes = 10
	assert.False(t, s.ReadyForPayment())

	s.Lobby = &LobbyLink{ID: "l1", IsHost: false}
	assert.True(t, s.ReadyForPayment(), "joiner inherits content")

	s.Lobby.IsHost = true
	assert.False(t, s.ReadyForPayment())

	s.Car, s.Track = "gt3", "spa"
	assert.True(t, s.ReadyForPayment())
}

func TestSelection_Clone(t *testing.T) {
	s := NewSelection()
	s.Lobby = &LobbyLink{ID: "l1"}
	c := s.Clone()
	c.Lobby.ID = "other"
	assert.Equal(t, "l1", s.Lobby.ID)
}

func TestHardwareStatus_Missing(t *testing.T) {
	assert.Equal(t, []string{"station"}, HardwareStatus{}.Missing())
	assert.Equal(t, []string{"wheel", "pedals"}, HardwareStatus{IsOnline: true}.Missing())
	assert.False(t, HardwareStatus{
		IsOnline: true, WheelConnected: true, PedalsConnected: true,
	}.Degraded())
}

func TestLobbyRecord(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := &LobbyRecord{
		Status:     LobbyWaiting,
		MaxPlayers: 2,
		CreatedAt:  created,
		Players: []LobbyPlayer{
			{StationID: "rig-1", Slot: 0, Ready: true},
		},
	}
	assert.True(t, l.Joinable())
	assert.True(t, l.HasPlayer("rig-1"))
	assert.False(t, l.HasPlayer("rig-2"))
	assert.Equal(t, 1, l.ReadyCount())
	assert.Equal(t, 3*time.Minute, l.Age(created.Add(3*time.Minute)))

	l.Players = append(l.Players, LobbyPlayer{StationID: "rig-2", Slot: 1})
	assert.True(t, l.Full())
	assert.False(t, l.Joinable())

	c := l.Clone()
	c.Players[0].Ready = false
	assert.True(t, l.Players[0].Ready)
}

func TestStep_Text(t *testing.T) {
	b, err := StepWaitingRoom.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "waitingRoom", string(b))

	var s Step
	assert.NoError(t, s.UnmarshalText([]byte("payment")))
	assert.Equal(t, StepPayment, s)
	assert.Error(t, s.UnmarshalText([]byte("checkout")))
}
