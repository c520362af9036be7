package model

import "github.com/shopspring/decimal"

type Provider string

const (
	ProviderGatewayQR      Provider = "gateway_qr"
	ProviderDirectTransfer Provider = "direct_transfer_ref"
	// used when the venue runs without payment
	ProviderComplimentary Provider = "complimentary"
)

func (p Provider) Valid() bool {
	return p == ProviderGatewayQR || p == ProviderDirectTransfer
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentExpired PaymentStatus = "expired"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentFailed || s == PaymentExpired
}

// PaymentState mirrors one checkout at the payment gateway.
// A retry or provider switch creates a new PaymentState.
type PaymentState struct {
	ID           string          `json:"id"`
	Provider     Provider        `json:"provider"`
	Status       PaymentStatus   `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	CheckoutURL  string          `json:"checkoutUrl,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
	Reference    string          `json:"reference,omitempty"`

	// set once the settlement has been handed to launch or lobby handling
	AlreadyDispatched bool `json:"alreadyDispatched"`
}

func (p *PaymentState) Settled() bool {
	return p != nil && p.Status == PaymentPaid
}

// PaymentMethod is the value reported to the backend when a session starts.
func (p *PaymentState) PaymentMethod() string {
	if p == nil {
		return string(ProviderComplimentary)
	}
	return string(p.Provider)
}
