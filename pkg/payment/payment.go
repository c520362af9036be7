// Package payment requests checkouts and tracks which payment is the active
// one for the current visit.
//
// The Coordinator splits into blocking calls (Checkout, Status) that run off
// the event loop and bookkeeping methods that must only be called from the
// loop.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

type (
	// CheckoutError is returned when a checkout could not be created. The
	// customer may retry.
	CheckoutError struct {
		Provider model.Provider
		Cause    error
	}

	Coordinator struct {
		svc       backend.PaymentService
		stationID string
		l         *log.Logger

		seq    uint64
		active *model.PaymentState
	}
	Option func(*Coordinator)

	// Outcome describes how a status response changed the active payment.
	Outcome int
)

const (
	// OutcomeStale means the response belongs to a superseded payment.
	OutcomeStale Outcome = iota
	OutcomeUnchanged
	OutcomeUpdated
	OutcomeSettled
	OutcomeFailed
)

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout via %s failed: %v", e.Provider, e.Cause)
}

func (e *CheckoutError) Unwrap() error {
	return e.Cause
}

func NewCoordinator(svc backend.PaymentService, stationID string, opts ...Option) *Coordinator {
	ret := &Coordinator{
		svc:       svc,
		stationID: stationID,
		l:         log.Default().Named("kiosk.payment"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		c.l = l
	}
}

// Checkout creates a payment at the gateway. Blocking, safe off the loop.
//
//nolint:whitespace // can't make both editor and linter happy
func (c *Coordinator) Checkout(
	ctx context.Context,
	sel model.Selection,
	driver *model.Driver,
	provider model.Provider,
) (*model.PaymentState, error) {
	req := backend.CheckoutRequest{
		Provider:        provider,
		StationID:       c.stationID,
		DurationMinutes: sel.DurationMinutes,
		ScenarioID:      sel.ScenarioID,
	}
	if driver != nil {
		req.DriverName = driver.Name
	}
	p, err := c.svc.Checkout(ctx, req)
	if err != nil {
		c.l.Warn("checkout failed",
			log.String("provider", string(provider)),
			log.Int("duration", sel.DurationMinutes),
			log.ErrorField(err))
		return nil, &CheckoutError{Provider: provider, Cause: err}
	}
	c.l.Info("checkout created",
		log.String("id", p.ID),
		log.String("provider", string(p.Provider)),
		log.String("amount", p.Amount.String()))
	return p, nil
}

// Status polls the gateway. Blocking, safe off the loop.
func (c *Coordinator) Status(ctx context.Context, id string) (*model.PaymentState, error) {
	return c.svc.PaymentStatus(ctx, id)
}

// Begin invalidates the active payment and any checkout in flight. The
// returned token identifies the checkout about to be issued.
func (c *Coordinator) Begin() uint64 {
	c.seq++
	c.active = nil
	return c.seq
}

// AcceptCheckout installs p as active payment if token is still current.
func (c *Coordinator) AcceptCheckout(token uint64, p *model.PaymentState) bool {
	if token != c.seq {
		c.l.Debug("dropping superseded checkout", log.String("id", p.ID))
		return false
	}
	cp := *p
	cp.AlreadyDispatched = false
	c.active = &cp
	return true
}

// Current reports whether token still identifies the latest checkout.
func (c *Coordinator) Current(token uint64) bool {
	return token == c.seq
}

// AcceptStatus merges a status response into the active payment.
func (c *Coordinator) AcceptStatus(p *model.PaymentState) Outcome {
	if c.active == nil || p == nil || p.ID != c.active.ID {
		return OutcomeStale
	}
	if c.active.Status.Terminal() {
		// terminal states are final, repeated or reordered responses are ignored
		return OutcomeUnchanged
	}
	if p.Status == c.active.Status {
		return OutcomeUnchanged
	}
	c.active.Status = p.Status
	switch p.Status {
	case model.PaymentPaid:
		return OutcomeSettled
	case model.PaymentFailed, model.PaymentExpired:
		return OutcomeFailed
	default:
		return OutcomeUpdated
	}
}

// Complimentary installs a locally settled payment, used when the venue
// does not charge.
func (c *Coordinator) Complimentary() *model.PaymentState {
	c.seq++
	c.active = &model.PaymentState{
		ID:       fmt.Sprintf("complimentary-%d", c.seq),
		Provider: model.ProviderComplimentary,
		Status:   model.PaymentPaid,
		Amount:   decimal.Zero,
	}
	return c.active
}

// Dispatch flips the one-shot latch of the settled active payment. It
// returns true exactly once per payment.
func (c *Coordinator) Dispatch() bool {
	if !c.active.Settled() || c.active.AlreadyDispatched {
		return false
	}
	c.active.AlreadyDispatched = true
	return true
}

// Active returns a copy of the active payment, nil if there is none.
func (c *Coordinator) Active() *model.PaymentState {
	if c.active == nil {
		return nil
	}
	cp := *c.active
	return &cp
}

// PendingID returns the id of the active payment while it is pending.
func (c *Coordinator) PendingID() (string, bool) {
	if c.active == nil || c.active.Status != model.PaymentPending {
		return "", false
	}
	return c.active.ID, true
}

func (c *Coordinator) Reset() {
	c.seq++
	c.active = nil
}
