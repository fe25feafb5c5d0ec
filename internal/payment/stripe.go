package payment

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// ErrCredentialMissing indicates the processor secret key is not configured.
// The check runs per request so a later deploy with the key set recovers
// without a restart.
var ErrCredentialMissing = errors.New("payment processor credential missing")

// CheckoutParams describes a single-line-item, single-quantity checkout.
type CheckoutParams struct {
	AmountMinor   int64
	Currency      string
	ProductName   string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the processor session slice this platform cares about.
type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	AmountMinor   int64
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
}

// Processor abstracts the hosted payment provider.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error)
}

// StripeProcessor implements Processor against Stripe Checkout.
type StripeProcessor struct {
	// Key returns the secret key; evaluated on every call.
	Key func() string
}

// NewStripeProcessor constructs a StripeProcessor with a static key source.
func NewStripeProcessor(key func() string) *StripeProcessor {
	return &StripeProcessor{Key: key}
}

// CreateCheckoutSession opens a one-time payment checkout session.
func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error) {
	key := p.key()
	if key == "" {
		return CheckoutSession{}, ErrCredentialMissing
	}
	stripe.Key = key

	sessionParams := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(params.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(params.ProductName),
						Description: stripe.String(params.Description),
					},
					UnitAmount: stripe.Int64(params.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SubmitType: stripe.String("donate"),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata:   params.Metadata,
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	s, err := session.New(sessionParams)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return CheckoutSession{}, errors.New(stripeErr.Msg)
		}
		return CheckoutSession{}, err
	}
	return fromStripeSession(s), nil
}

// GetCheckoutSession retrieves the current state of a checkout session.
func (p *StripeProcessor) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	key := p.key()
	if key == "" {
		return CheckoutSession{}, ErrCredentialMissing
	}
	stripe.Key = key

	s, err := session.Get(id, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return CheckoutSession{}, errors.New(stripeErr.Msg)
		}
		return CheckoutSession{}, err
	}
	return fromStripeSession(s), nil
}

func (p *StripeProcessor) key() string {
	if p == nil || p.Key == nil {
		return ""
	}
	return p.Key()
}

func fromStripeSession(s *stripe.CheckoutSession) CheckoutSession {
	email := s.CustomerEmail
	if email == "" && s.CustomerDetails != nil {
		email = s.CustomerDetails.Email
	}
	return CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountMinor:   s.AmountTotal,
		Currency:      string(s.Currency),
		CustomerEmail: email,
		Metadata:      s.Metadata,
	}
}

var _ Processor = (*StripeProcessor)(nil)
