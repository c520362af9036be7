package model

import "fmt"

// Step is the position of the customer in the kiosk flow.
type Step int

const (
	StepScenario Step = iota + 1
	StepDriver
	StepContent
	StepDifficulty
	StepPayment
	StepWaitingRoom
	StepResults
)

var stepNames = map[Step]string{
	StepScenario:    "scenario",
	StepDriver:      "driver",
	StepContent:     "content",
	StepDifficulty:  "difficulty",
	StepPayment:     "payment",
	StepWaitingRoom: "waitingRoom",
	StepResults:     "results",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	for k, v := range stepNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", text)
}
