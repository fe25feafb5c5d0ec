package donation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// DefaultSessionTimeout bounds the round trip to the payment function.
const DefaultSessionTimeout = 20 * time.Second

// Orchestrator submits donation intents to the payment function and exposes
// the resulting checkout redirect. Creating a session is not idempotent:
// calling twice with the same intent opens two distinct checkout sessions,
// so callers must not retry without user confirmation.
type Orchestrator struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewOrchestrator constructs an Orchestrator targeting the payment function
// endpoint. A nil client gets a bounded-timeout default.
func NewOrchestrator(endpoint string, client *http.Client, logger *slog.Logger) *Orchestrator {
	if client == nil {
		client = &http.Client{Timeout: DefaultSessionTimeout}
	}
	return &Orchestrator{endpoint: endpoint, client: client, logger: logger}
}

type sessionRequest struct {
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency,omitempty"`
	Donor         *sessionDonor `json:"donor,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	SuccessURL    string        `json:"success_url,omitempty"`
	CancelURL     string        `json:"cancel_url,omitempty"`
	ProjectID     int64         `json:"project_id,omitempty"`
}

type sessionDonor struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	IsAnonymous bool   `json:"isAnonymous"`
}

type sessionResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// CreateSession normalizes the intent amount, validates the intent, and
// requests a checkout session from the payment function. No network call is
// made when normalization or validation fails. Transport and processor
// failures are wrapped in ErrSessionCreation; raw errors never cross this
// boundary.
func (o *Orchestrator) CreateSession(ctx context.Context, intent Intent) (Session, error) {
	amountMinor, err := NormalizeAmount(intent.RawAmount, intent.MinimumMajor)
	if err != nil {
		return Session{}, err
	}
	if err := validateIntent(intent, o.logger); err != nil {
		return Session{}, err
	}

	payload := sessionRequest{
		Amount:        amountMinor,
		Currency:      strings.ToLower(intent.Currency),
		PaymentMethod: intent.PaymentMethod,
		SuccessURL:    intent.SuccessURL,
		CancelURL:     intent.CancelURL,
		ProjectID:     intent.ProjectID,
	}
	if intent.Donor != (Donor{}) {
		payload.Donor = &sessionDonor{
			Name:        intent.Donor.Name,
			Email:       intent.Donor.Email,
			Phone:       intent.Donor.Phone,
			IsAnonymous: intent.Donor.IsAnonymous,
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := o.client.Do(req)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("payment function call failed", slog.Any("error", err))
		}
		return Session{}, fmt.Errorf("%w: payment service unreachable", ErrSessionCreation)
	}
	defer res.Body.Close()

	var parsed sessionResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&parsed); err != nil {
		return Session{}, fmt.Errorf("%w: malformed response", ErrSessionCreation)
	}
	if res.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = res.Status
		}
		return Session{}, fmt.Errorf("%w: %s", ErrSessionCreation, msg)
	}
	if parsed.URL == "" {
		return Session{}, ErrMissingRedirectURL
	}
	return Session{URL: parsed.URL}, nil
}

// validateIntent checks the currency code and redirect URLs before any
// network traffic. Codes outside ISO 4217 are accepted for portability but
// logged, since the processor is likely to reject them.
func validateIntent(intent Intent, logger *slog.Logger) error {
	code := strings.ToLower(strings.TrimSpace(intent.Currency))
	if len(code) != 3 || !isAlpha(code) {
		return fmt.Errorf("%w: currency %q is not a 3-letter code", ErrInvalidIntent, intent.Currency)
	}
	if _, err := currency.ParseISO(code); err != nil && logger != nil {
		logger.Warn("currency code outside ISO 4217", slog.String("currency", code))
	}
	for _, target := range []struct{ name, value string }{
		{"success_url", intent.SuccessURL},
		{"cancel_url", intent.CancelURL},
	} {
		if target.value == "" {
			continue
		}
		parsed, err := url.Parse(target.value)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute URL", ErrInvalidIntent, target.name)
		}
	}
	switch intent.PaymentMethod {
	case "", MethodCard, MethodSTCPay, MethodBank:
	default:
		return fmt.Errorf("%w: unsupported payment method %q", ErrInvalidIntent, intent.PaymentMethod)
	}
	return nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
