package model

import "github.com/samber/lo"

// Scenario is an admin defined template restricting the kiosk session.
// Empty lists mean no restriction.
type Scenario struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	SessionKind  SessionKind `json:"sessionKind"`
	Cars         []string    `json:"cars,omitempty"`
	Tracks       []string    `json:"tracks,omitempty"`
	Durations    []int       `json:"durations,omitempty"`
	DefaultCar   string      `json:"defaultCar,omitempty"`
	DefaultTrack string      `json:"defaultTrack,omitempty"`
}

func (s *Scenario) AllowsCar(car string) bool {
	return len(s.Cars) == 0 || lo.Contains(s.Cars, car)
}

func (s *Scenario) AllowsTrack(track string) bool {
	return len(s.Tracks) == 0 || lo.Contains(s.Tracks, track)
}

func (s *Scenario) AllowsDuration(minutes int) bool {
	return len(s.Durations) == 0 || lo.Contains(s.Durations, minutes)
}

// Prefill returns the content fixed by the scenario, either by explicit
// defaults or because only one value is allowed.
func (s *Scenario) Prefill() (car, track string) {
	car, track = s.DefaultCar, s.DefaultTrack
	if car == "" && len(s.Cars) == 1 {
		car = s.Cars[0]
	}
	if track == "" && len(s.Tracks) == 1 {
		track = s.Tracks[0]
	}
	return car, track
}

type PickOrigin string

const (
	OriginStandard PickOrigin = "standard"
	OriginDaily    PickOrigin = "daily"
	OriginSurprise PickOrigin = "surprise"
)

// ScenarioPick is the outcome of the scenario step.
type ScenarioPick struct {
	Origin          PickOrigin  `json:"origin"`
	Scenario        *Scenario   `json:"scenario,omitempty"`
	Car             string      `json:"car,omitempty"`
	Track           string      `json:"track,omitempty"`
	SessionKind     SessionKind `json:"sessionKind,omitempty"`
	DurationMinutes int         `json:"durationMinutes"`
}

// Content is the catalog of cars and tracks installed on the stations.
type Content struct {
	Cars   []string `json:"cars"`
	Tracks []string `json:"tracks"`
}
