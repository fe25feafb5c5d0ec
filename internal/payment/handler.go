package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ataa-platform/ataa/internal/donation"
	"github.com/ataa-platform/ataa/internal/shared"
)

// The function is invoked cross-origin by the public site, so it answers
// preflights and allows the headers the SPA toolchain sends.
const allowedHeaders = "authorization, x-client-info, apikey, content-type"

// productName is the fixed checkout line-item label.
const productName = "Donation"

// Handler implements the create-payment function wire contract.
type Handler struct {
	logger    *slog.Logger
	processor Processor
	service   *donation.Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, processor Processor, service *donation.Service) *Handler {
	return &Handler{logger: logger, processor: processor, service: service}
}

// MountRoutes registers the function endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Options("/create-payment", h.preflight)
	r.Post("/create-payment", h.createPayment)
}

type createRequest struct {
	Amount        json.Number  `json:"amount"`
	Currency      string       `json:"currency"`
	Donor         *createDonor `json:"donor"`
	PaymentMethod string       `json:"payment_method"`
	SuccessURL    string       `json:"success_url"`
	CancelURL     string       `json:"cancel_url"`
	ProjectID     int64        `json:"project_id"`
}

type createDonor struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	IsAnonymous bool   `json:"isAnonymous"`
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
}

func (h *Handler) preflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	// A malformed body is treated as an empty request; the amount check
	// below rejects it.
	var req createRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	amount, err := req.Amount.Int64()
	if err != nil || amount <= 0 {
		h.fail(w, "Invalid amount provided. Amount must be a positive integer in minor units.")
		return
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "sar"
	}

	origin := r.Header.Get("Origin")
	successURL := req.SuccessURL
	if successURL == "" {
		successURL = origin + "/donate?status=success"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = origin + "/donate?status=cancel"
	}

	donor := createDonor{}
	if req.Donor != nil {
		donor = *req.Donor
	}

	metadata := map[string]string{
		"name":          donor.Name,
		"phone":         donor.Phone,
		"isAnonymous":   strconv.FormatBool(donor.IsAnonymous),
		"paymentMethod": req.PaymentMethod,
	}
	if req.ProjectID > 0 {
		metadata["projectId"] = strconv.FormatInt(req.ProjectID, 10)
	}

	sess, err := h.processor.CreateCheckoutSession(r.Context(), CheckoutParams{
		AmountMinor:   amount,
		Currency:      currency,
		ProductName:   productName,
		Description:   donorDescription(donor),
		CustomerEmail: donor.Email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Metadata:      metadata,
	})
	if err != nil {
		if h.logger != nil && errors.Is(err, ErrCredentialMissing) {
			h.logger.Error("payment credential missing")
		}
		h.fail(w, err.Error())
		return
	}

	if h.service != nil {
		pending := donation.Donation{
			AmountMinor:        amount,
			Currency:           currency,
			DonorName:          donor.Name,
			DonorEmail:         donor.Email,
			DonorPhone:         donor.Phone,
			IsAnonymous:        donor.IsAnonymous,
			PaymentMethod:      req.PaymentMethod,
			ProcessorSessionID: sess.ID,
		}
		if req.ProjectID > 0 {
			projectID := req.ProjectID
			pending.ProjectID = &projectID
		}
		if _, err := h.service.RecordPending(r.Context(), pending); err != nil && h.logger != nil {
			// The checkout session exists either way; reconciliation picks
			// the record up from the processor if this insert is lost.
			h.logger.Warn("record pending donation", slog.Any("error", err))
		}
	}

	shared.RespondJSON(w, http.StatusOK, donation.Session{URL: sess.URL})
}

// donorDescription builds the line-item description, masking the donor name
// for anonymous donations.
func donorDescription(d createDonor) string {
	if d.IsAnonymous {
		return "Anonymous donation"
	}
	name := d.Name
	if name == "" {
		name = "Supporter"
	}
	return fmt.Sprintf("Donation from %s", name)
}

func (h *Handler) fail(w http.ResponseWriter, message string) {
	shared.RespondJSON(w, http.StatusInternalServerError, shared.ErrorBody{Error: message})
}
