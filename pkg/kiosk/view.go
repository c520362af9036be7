package kiosk

import (
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"

	"github.com/mpapenbr/simkiosk/pkg/model"
)

type (
	BannerKind string
	AlertKind  string

	// Banner is a step-local, non-fatal problem shown next to the flow.
	Banner struct {
		Kind      BannerKind `json:"kind"`
		Message   string     `json:"message"`
		Retryable bool       `json:"retryable"`
	}

	// Alert explains why the visit was reset. It is cleared by the next input.
	Alert struct {
		Kind    AlertKind `json:"kind"`
		Message string    `json:"message"`
	}

	// View is the read-only snapshot rendered by the presentation layer.
	View struct {
		Station           string                `json:"station"`
		Step              model.Step            `json:"step"`
		Launched          bool                  `json:"launched"`
		Launching         bool                  `json:"launching"`
		Scenario          *model.Scenario       `json:"scenario,omitempty"`
		Selection         model.Selection       `json:"selection"`
		Driver            *model.Driver         `json:"driver,omitempty"`
		Provider          model.Provider        `json:"provider"`
		Payment           *model.PaymentState   `json:"payment,omitempty"`
		Lobby             *model.LobbyRecord    `json:"lobby,omitempty"`
		Session           *model.SessionRecord  `json:"session,omitempty"`
		RemainingSeconds  int                   `json:"remainingSeconds"`
		IsIdle            bool                  `json:"isIdle"`
		Banners           []Banner              `json:"banners"`
		Alert             *Alert                `json:"alert,omitempty"`
		Hardware          *model.HardwareStatus `json:"hardware,omitempty"`
		Result            *model.SessionResult  `json:"result,omitempty"`
		CanConfirmContent bool                  `json:"canConfirmContent"`
		CanGoBack         bool                  `json:"canGoBack"`
		PaymentEnabled    bool                  `json:"paymentEnabled"`
		Durations         []int                 `json:"durations"`
	}
)

const (
	BannerCheckout BannerKind = "checkout"
	BannerPayment  BannerKind = "payment"
	BannerLobby    BannerKind = "lobby"
	BannerLaunch   BannerKind = "launch"
	BannerHardware BannerKind = "hardware"

	AlertLobbyUnavailable AlertKind = "lobbyUnavailable"
)

// bannerOrder is the display order, most relevant first.
var bannerOrder = []BannerKind{
	BannerLaunch, BannerLobby, BannerCheckout, BannerPayment, BannerHardware,
}

func (o *Orchestrator) buildView() View {
	v := View{
		Station:           o.stationID,
		Step:              o.v.step,
		Launched:          o.v.launched,
		Launching:         o.v.launching,
		Scenario:          o.v.scenario,
		Selection:         o.v.selection.Clone(),
		Driver:            o.driverCopy(),
		Provider:          o.provider,
		Payment:           o.payment.Active(),
		Lobby:             o.lobby.Mirror(),
		Session:           o.v.session,
		RemainingSeconds:  o.countdown.Remaining(),
		IsIdle:            o.idle.Idle(),
		Banners:           o.banners(),
		Alert:             o.alert,
		Hardware:          o.hardware,
		Result:            o.v.result,
		CanConfirmContent: o.v.step == model.StepContent && o.v.selection.HasContent(),
		CanGoBack:         o.backErr() == nil,
		PaymentEnabled:    o.venue.PaymentEnabled,
		Durations:         o.durations(),
	}
	if v.Lobby == nil && o.v.preview != nil {
		v.Lobby = o.v.preview.Clone()
	}
	return v
}

func (o *Orchestrator) banners() []Banner {
	ret := lo.Values(o.v.banners)
	if o.hardware != nil && o.hardware.Degraded() {
		ret = append(ret, Banner{
			Kind:    BannerHardware,
			Message: (&HardwareDegraded{Missing: o.hardware.Missing()}).Error(),
		})
	}
	slices.SortFunc(ret, func(a, b Banner) int {
		return slices.Index(bannerOrder, a.Kind) - slices.Index(bannerOrder, b.Kind)
	})
	return ret
}

// durations offered at the difficulty step.
func (o *Orchestrator) durations() []int {
	if s := o.v.scenario; s != nil && len(s.Durations) > 0 {
		return slices.Clone(s.Durations)
	}
	return slices.Clone(o.venue.Durations)
}

// publish makes the current state visible if it changed since the last
// publication. Must be called on the loop.
func (o *Orchestrator) publish() {
	v := o.buildView()
	o.viewMu.Lock()
	changed := !cmp.Equal(v, o.last)
	if changed {
		o.last = v
	}
	o.viewMu.Unlock()
	if !changed {
		return
	}
	if o.onChange != nil {
		o.onChange(v)
	}
	select {
	case o.views <- v:
	default:
	}
}
