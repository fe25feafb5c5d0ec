package donation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
)

// ProjectMinimumMajor is the per-project donation floor in major units.
const ProjectMinimumMajor = 10

// Handler wires checkout and admin donation endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMw, validator: validator.New()}
}

// MountPublic registers the checkout routes.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/donate", h.checkout)
	r.Post("/projects/{projectID}/donate", h.checkoutProject)
}

// MountAdmin registers the dashboard donation routes.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapViewDonations))
		r.Get("/donations", h.list)
		r.Get("/donations/summary", h.summary)
	})
}

type donorPayload struct {
	Name        string `json:"name"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	IsAnonymous bool   `json:"isAnonymous"`
}

type checkoutRequest struct {
	Amount        json.Number  `json:"amount"`
	Currency      string       `json:"currency" validate:"omitempty,len=3"`
	Donor         donorPayload `json:"donor"`
	PaymentMethod string       `json:"payment_method" validate:"omitempty,oneof=card stcpay bank"`
	SuccessURL    string       `json:"success_url" validate:"omitempty,url"`
	CancelURL     string       `json:"cancel_url" validate:"omitempty,url"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	h.handleCheckout(w, r, 0, 0)
}

func (h *Handler) checkoutProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil || projectID <= 0 {
		shared.RespondError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	h.handleCheckout(w, r, projectID, ProjectMinimumMajor)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request, projectID, minimumMajor int64) {
	var req checkoutRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "sar"
	}
	intent := Intent{
		RawAmount: req.Amount.String(),
		Currency:  currency,
		Donor: Donor{
			Name:        req.Donor.Name,
			Email:       req.Donor.Email,
			Phone:       req.Donor.Phone,
			IsAnonymous: req.Donor.IsAnonymous,
		},
		PaymentMethod: req.PaymentMethod,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		ProjectID:     projectID,
		MinimumMajor:  minimumMajor,
	}

	sess, err := h.service.Checkout(r.Context(), intent)
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) respondCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		shared.RespondError(w, http.StatusBadRequest, "invalid donation amount")
	case errors.Is(err, ErrBelowMinimum):
		shared.RespondError(w, http.StatusBadRequest, "donation amount is below the minimum")
	case errors.Is(err, ErrInvalidIntent):
		shared.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("checkout failed", slog.Any("error", err))
		}
		shared.RespondError(w, http.StatusBadGateway, "could not start payment, try again")
	}
}

type listResponse struct {
	Donations  []Donation        `json:"donations"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filters := ListFilters{Page: page, PerPage: perPage}
	switch status := Status(r.URL.Query().Get("status")); status {
	case "", StatusPending, StatusPaid, StatusFailed:
		filters.Status = status
	default:
		shared.RespondError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	donations, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list donations", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if donations == nil {
		donations = []Donation{}
	}
	shared.RespondJSON(w, http.StatusOK, listResponse{
		Donations:  donations,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summarize(r.Context())
	if err != nil {
		h.logger.Error("summarize donations", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.RespondJSON(w, http.StatusOK, summary)
}
