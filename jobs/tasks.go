package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPaymentReconcile re-checks stale pending donations against the
	// payment processor.
	TaskPaymentReconcile = "payment:reconcile"
	// TaskAnalyticsWarmup pre-populates the dashboard summary cache.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskSendReceipt delivers a thank-you receipt to a donor.
	TaskSendReceipt = "mail:receipt"
)

// ReceiptPayload describes a donor receipt.
type ReceiptPayload struct {
	Email       string `json:"email"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// NewSendReceiptTask constructs an Asynq task.
func NewSendReceiptTask(payload ReceiptPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendReceipt, data), nil
}

// NewPaymentReconcileTask constructs the reconcile task.
func NewPaymentReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskPaymentReconcile, nil)
}

// NewAnalyticsWarmupTask constructs the warmup task.
func NewAnalyticsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskAnalyticsWarmup, nil)
}

// ReceiptJob sends donor receipts. Delivery is logged until an SMTP relay is
// wired; the formatted amount keeps receipts consistent with the checkout.
type ReceiptJob struct {
	Logger *slog.Logger
}

// Handle processes TaskSendReceipt tasks.
func (j *ReceiptJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Email == "" {
		return asynq.SkipRetry
	}
	if j.Logger != nil {
		j.Logger.Info("send donation receipt",
			slog.String("to", payload.Email),
			slog.String("amount", FormatAmount(payload.AmountMinor, payload.Currency)))
	}
	return nil
}

// FormatAmount renders a minor-unit amount with its currency unit, falling
// back to a plain major-unit figure for non-ISO codes.
func FormatAmount(amountMinor int64, code string) string {
	printer := message.NewPrinter(language.English)
	major := float64(amountMinor) / 100
	unit, err := currency.ParseISO(code)
	if err != nil {
		return printer.Sprintf("%.2f %s", major, strings.ToUpper(code))
	}
	return printer.Sprintf("%v", currency.Symbol(unit.Amount(major)))
}
