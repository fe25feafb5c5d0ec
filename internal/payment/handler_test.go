package payment_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ataa-platform/ataa/internal/donation"
	"github.com/ataa-platform/ataa/internal/payment"
	"github.com/ataa-platform/ataa/internal/shared"
	_ "github.com/ataa-platform/ataa/testing"
)

type stubProcessor struct {
	lastParams payment.CheckoutParams
	calls      int
	session    payment.CheckoutSession
	err        error
}

func (s *stubProcessor) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (payment.CheckoutSession, error) {
	s.calls++
	s.lastParams = params
	if s.err != nil {
		return payment.CheckoutSession{}, s.err
	}
	return s.session, nil
}

func (s *stubProcessor) GetCheckoutSession(ctx context.Context, id string) (payment.CheckoutSession, error) {
	return s.session, s.err
}

type memoryDonationRepo struct {
	rows   map[string]donation.Donation
	nextID int64
}

func newMemoryDonationRepo() *memoryDonationRepo {
	return &memoryDonationRepo{rows: make(map[string]donation.Donation)}
}

func (r *memoryDonationRepo) Insert(ctx context.Context, d donation.Donation) (int64, error) {
	r.nextID++
	d.ID = r.nextID
	r.rows[d.ProcessorSessionID] = d
	return d.ID, nil
}

func (r *memoryDonationRepo) List(ctx context.Context, filters donation.ListFilters) ([]donation.Donation, int, error) {
	var out []donation.Donation
	for _, d := range r.rows {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (r *memoryDonationRepo) Summarize(ctx context.Context) (donation.Summary, error) {
	return donation.Summary{}, nil
}

func (r *memoryDonationRepo) GetBySessionID(ctx context.Context, sessionID string) (donation.Donation, error) {
	d, ok := r.rows[sessionID]
	if !ok {
		return donation.Donation{}, shared.ErrNotFound
	}
	return d, nil
}

func (r *memoryDonationRepo) UpdateStatusBySessionID(ctx context.Context, sessionID string, status donation.Status) error {
	d, ok := r.rows[sessionID]
	if !ok {
		return shared.ErrNotFound
	}
	d.Status = status
	r.rows[sessionID] = d
	return nil
}

func (r *memoryDonationRepo) ListPendingOlderThan(ctx context.Context, age time.Duration) ([]donation.Donation, error) {
	var out []donation.Donation
	for _, d := range r.rows {
		if d.Status == donation.StatusPending {
			out = append(out, d)
		}
	}
	return out, nil
}

func newPaymentRouter(proc payment.Processor, repo donation.RepositoryPort) chi.Router {
	service := donation.NewService(repo, nil)
	handler := payment.NewHandler(nil, proc, service)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestPreflightReturnsCORSHeaders(t *testing.T) {
	router := newPaymentRouter(&stubProcessor{}, newMemoryDonationRepo())

	req := httptest.NewRequest(http.MethodOptions, "/create-payment", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, res.Header().Get("Access-Control-Allow-Headers"), "authorization")
	require.Empty(t, res.Body.String())
}

func TestCreatePaymentReturnsSessionURL(t *testing.T) {
	proc := &stubProcessor{session: payment.CheckoutSession{ID: "cs_123", URL: "https://pay.example/session/abc"}}
	repo := newMemoryDonationRepo()
	router := newPaymentRouter(proc, repo)

	body := `{"amount":10000,"currency":"sar","donor":{"name":"Sara","email":"sara@example.com","phone":"0500000000"},"payment_method":"card","success_url":"https://ataa.example/ok","cancel_url":"https://ataa.example/no"}`
	req := httptest.NewRequest(http.MethodPost, "/create-payment", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"url":"https://pay.example/session/abc"}`, res.Body.String())
	require.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))

	require.Equal(t, int64(10000), proc.lastParams.AmountMinor)
	require.Equal(t, "sar", proc.lastParams.Currency)
	require.Equal(t, "Donation", proc.lastParams.ProductName)
	require.Equal(t, "Donation from Sara", proc.lastParams.Description)
	require.Equal(t, "https://ataa.example/ok", proc.lastParams.SuccessURL)
	require.Equal(t, "card", proc.lastParams.Metadata["paymentMethod"])
	require.Equal(t, "0500000000", proc.lastParams.Metadata["phone"])

	pending, err := repo.GetBySessionID(context.Background(), "cs_123")
	require.NoError(t, err)
	require.Equal(t, donation.StatusPending, pending.Status)
	require.Equal(t, int64(10000), pending.AmountMinor)
}

func TestCreatePaymentAnonymousDonorMasked(t *testing.T) {
	proc := &stubProcessor{session: payment.CheckoutSession{ID: "cs_a", URL: "https://pay.example/s"}}
	router := newPaymentRouter(proc, newMemoryDonationRepo())

	body := `{"amount":5000,"donor":{"name":"Sara","isAnonymous":true}}`
	req := httptest.NewRequest(http.MethodPost, "/create-payment", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "Anonymous donation", proc.lastParams.Description)
	require.NotContains(t, proc.lastParams.Description, "Sara")
	require.Equal(t, "true", proc.lastParams.Metadata["isAnonymous"])
}

func TestCreatePaymentRejectsNonPositiveAmount(t *testing.T) {
	proc := &stubProcessor{}
	router := newPaymentRouter(proc, newMemoryDonationRepo())

	for _, body := range []string{`{"amount":0}`, `{"amount":-5}`, `{}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/create-payment", strings.NewReader(body))
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)

		require.Equal(t, http.StatusInternalServerError, res.Code, "body=%s", body)
		require.Contains(t, res.Body.String(), "Invalid amount")
	}
	require.Zero(t, proc.calls, "no session may be created for invalid amounts")
}

func TestCreatePaymentCredentialMissing(t *testing.T) {
	proc := &stubProcessor{err: payment.ErrCredentialMissing}
	router := newPaymentRouter(proc, newMemoryDonationRepo())

	req := httptest.NewRequest(http.MethodPost, "/create-payment", strings.NewReader(`{"amount":1000}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.JSONEq(t, `{"error":"payment processor credential missing"}`, res.Body.String())
}

func TestCreatePaymentDefaultsRedirectsToOrigin(t *testing.T) {
	proc := &stubProcessor{session: payment.CheckoutSession{ID: "cs_b", URL: "https://pay.example/s"}}
	router := newPaymentRouter(proc, newMemoryDonationRepo())

	req := httptest.NewRequest(http.MethodPost, "/create-payment", strings.NewReader(`{"amount":1000}`))
	req.Header.Set("Origin", "https://ataa.example")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "https://ataa.example/donate?status=success", proc.lastParams.SuccessURL)
	require.Equal(t, "https://ataa.example/donate?status=cancel", proc.lastParams.CancelURL)
}

func TestCreatePaymentProcessorError(t *testing.T) {
	proc := &stubProcessor{err: errors.New("No such currency: xxx")}
	router := newPaymentRouter(proc, newMemoryDonationRepo())

	req := httptest.NewRequest(http.MethodPost, "/create-payment", strings.NewReader(`{"amount":1000,"currency":"xxx"}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Contains(t, res.Body.String(), "No such currency")
}
