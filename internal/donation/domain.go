package donation

import (
	"errors"
	"time"
)

// Status tracks the lifecycle of a donation record. Records start pending
// when a checkout session is opened and become paid only via the processor
// webhook, never via redirect query parameters.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Payment method hints forwarded to the processor as metadata.
const (
	MethodCard   = "card"
	MethodSTCPay = "stcpay"
	MethodBank   = "bank"
)

// Donor carries the optional contact details collected at checkout.
type Donor struct {
	Name        string
	Email       string
	Phone       string
	IsAnonymous bool
}

// Intent is the validated, not-yet-submitted representation of a desired
// contribution. It lives for a single checkout attempt and is never
// persisted; the resulting transaction is recorded by the webhook consumer.
type Intent struct {
	RawAmount     string
	Currency      string
	Donor         Donor
	PaymentMethod string
	SuccessURL    string
	CancelURL     string

	// ProjectID ties the donation to a project; zero means the generic flow.
	ProjectID int64
	// MinimumMajor is the context-dependent floor in major units; zero means
	// only positivity is required.
	MinimumMajor int64
}

// Session is the processor-hosted checkout redirect handed back to the UI.
type Session struct {
	URL string `json:"url"`
}

// Donation is a recorded contribution as reconciled from the processor.
type Donation struct {
	ID                 int64     `json:"id"`
	ProjectID          *int64    `json:"project_id,omitempty"`
	AmountMinor        int64     `json:"amount_minor"`
	Currency           string    `json:"currency"`
	DonorName          string    `json:"donor_name,omitempty"`
	DonorEmail         string    `json:"donor_email,omitempty"`
	DonorPhone         string    `json:"donor_phone,omitempty"`
	IsAnonymous        bool      `json:"is_anonymous"`
	PaymentMethod      string    `json:"payment_method,omitempty"`
	ProcessorSessionID string    `json:"-"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

var (
	// ErrInvalidAmount indicates the raw amount failed to parse, was not
	// finite, was not positive, or exceeded the processor ceiling.
	ErrInvalidAmount = errors.New("donation: invalid amount")
	// ErrBelowMinimum indicates the amount is under the configured floor.
	ErrBelowMinimum = errors.New("donation: amount below minimum")
	// ErrInvalidIntent indicates a malformed currency code or redirect URL.
	ErrInvalidIntent = errors.New("donation: invalid intent")
	// ErrSessionCreation wraps transport or processor failures.
	ErrSessionCreation = errors.New("donation: could not create payment session")
	// ErrMissingRedirectURL indicates the processor reported success without
	// a checkout URL, which violates its contract.
	ErrMissingRedirectURL = errors.New("donation: processor returned no redirect url")
)
