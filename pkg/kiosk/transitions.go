package kiosk

import (
	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

// transition moves the visit from one step to another if its guard holds.
// The first matching row wins. effect runs after the step was entered.
type transition struct {
	from   model.Step
	when   func(o *Orchestrator) bool
	to     model.Step
	effect func(o *Orchestrator)
}

var forward = []transition{
	{from: model.StepScenario, to: model.StepDriver},
	{
		from:   model.StepDriver,
		when:   contentFixed,
		to:     model.StepDifficulty,
		effect: func(o *Orchestrator) { o.v.skippedContent = true },
	},
	{
		from:   model.StepDriver,
		to:     model.StepContent,
		effect: func(o *Orchestrator) { o.v.skippedContent = false },
	},
	{
		from: model.StepContent,
		when: func(o *Orchestrator) bool { return o.v.selection.HasContent() },
		to:   model.StepDifficulty,
	},
	{
		from:   model.StepDifficulty,
		when:   paymentEnabled,
		to:     model.StepPayment,
		effect: func(o *Orchestrator) { o.startCheckout() },
	},
	{
		from:   model.StepDifficulty,
		to:     model.StepDifficulty,
		effect: func(o *Orchestrator) { o.settleComplimentary() },
	},
}

var backward = []transition{
	{
		from:   model.StepDriver,
		to:     model.StepScenario,
		effect: func(o *Orchestrator) { o.clearPick() },
	},
	{from: model.StepContent, to: model.StepDriver},
	{
		from: model.StepDifficulty,
		when: func(o *Orchestrator) bool { return o.v.skippedContent },
		to:   model.StepDriver,
	},
	{from: model.StepDifficulty, to: model.StepContent},
	{
		from:   model.StepPayment,
		to:     model.StepDifficulty,
		effect: func(o *Orchestrator) { o.abandonPayment() },
	},
}

// contentFixed holds when the content step has nothing left to decide.
func contentFixed(o *Orchestrator) bool {
	return o.v.selection.HasContent() || o.v.selection.IsJoiner()
}

func paymentEnabled(o *Orchestrator) bool {
	return o.venue.PaymentEnabled
}

func (o *Orchestrator) advance() error {
	return o.apply(forward)
}

func (o *Orchestrator) retreat() error {
	if err := o.backErr(); err != nil {
		return err
	}
	return o.apply(backward)
}

func (o *Orchestrator) apply(table []transition) error {
	for _, t := range table {
		if t.from != o.v.step || (t.when != nil && !t.when(o)) {
			continue
		}
		if t.from != t.to {
			o.l.Debug("step change",
				log.String("from", t.from.String()), log.String("to", t.to.String()))
		}
		o.v.step = t.to
		if t.effect != nil {
			t.effect(o)
		}
		return nil
	}
	return errNoTransition
}

// backErr tells why back navigation is refused, nil if it is possible.
func (o *Orchestrator) backErr() error {
	switch {
	case o.v.launched:
		return ErrLaunched
	case o.v.launching:
		return ErrLaunching
	case o.payment.Active().Settled():
		return ErrSettled
	case o.v.step == model.StepScenario,
		o.v.step == model.StepWaitingRoom,
		o.v.step == model.StepResults:
		return ErrWrongStep
	}
	return nil
}

func (o *Orchestrator) expect(step model.Step) error {
	if o.v.launched {
		return ErrLaunched
	}
	if o.v.step != step {
		return ErrWrongStep
	}
	return nil
}

// clearPick forgets everything chosen since the scenario step, the driver
// included.
func (o *Orchestrator) clearPick() {
	o.v.selection = model.NewSelection()
	o.v.scenario = nil
	o.v.driver = nil
	o.v.preview = nil
	o.v.skippedContent = false
}

func (o *Orchestrator) abandonPayment() {
	o.stopPoll(pollPayment)
	o.payment.Reset()
	o.clearBanner(BannerCheckout)
	o.clearBanner(BannerPayment)
}
