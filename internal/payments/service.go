package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/logx"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
)

// Gateway is the remote payment provider surface; *Client satisfies it.
type Gateway interface {
	CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*Payment, error)
	RefundSale(ctx context.Context, saleID string, amount *decimal.Decimal, currency string) (*Refund, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) bool
}

// OrderStore is the slice of the orders repo the payment flows touch.
type OrderStore interface {
	Get(ctx context.Context, id string) (orders.Order, error)
	GetByPaymentRef(ctx context.Context, ref string) (orders.Order, error)
	SetPaymentReference(ctx context.Context, orderID, ref string) error
	SetPaymentStatusByRef(ctx context.Context, ref string, ps orders.PaymentStatus) (orders.Order, error)
}

type Service struct {
	Gateway Gateway
	Orders  OrderStore
	Log     *logx.Logger
}

type CreateResult struct {
	PaymentID   string `json:"payment_id"`
	ApprovalURL string `json:"approval_url"`
	State       string `json:"state"`
}

// Create opens a payment at the gateway. When orderID is given, the new
// payment id is stored as the order's payment_reference so webhooks and
// execute calls can find their way back. Gateway failure changes nothing
// locally.
func (s *Service) Create(ctx context.Context, orderID string, in CreatePaymentInput) (CreateResult, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return CreateResult{}, apperr.Validation("amount", "must be positive")
	}
	if orderID != "" {
		if _, err := s.Orders.Get(ctx, orderID); err != nil {
			return CreateResult{}, err
		}
	}
	p, err := s.Gateway.CreatePayment(ctx, in)
	if err != nil {
		return CreateResult{}, err
	}
	if orderID != "" {
		if err := s.Orders.SetPaymentReference(ctx, orderID, p.ID); err != nil {
			// Payment exists remotely but the link failed; surface it,
			// the client can retry linking via execute.
			s.Log.Error("failed to link payment to order", "order_id", orderID, "payment_id", p.ID, "err", err)
			return CreateResult{}, err
		}
	}
	return CreateResult{PaymentID: p.ID, ApprovalURL: p.ApprovalURL(), State: p.State}, nil
}

// Execute captures an approved payment, then reconciles the matching
// order: approved means paid, anything else means failed.
func (s *Service) Execute(ctx context.Context, paymentID, payerID string) (*Payment, *orders.Order, error) {
	p, err := s.Gateway.ExecutePayment(ctx, paymentID, payerID)
	if err != nil {
		return nil, nil, err
	}

	ps := orders.PaymentFailed
	if p.State == "approved" {
		ps = orders.PaymentPaid
	}
	o, err := s.Orders.SetPaymentStatusByRef(ctx, paymentID, ps)
	if errors.Is(err, apperr.ErrNotFound) {
		// No order references this payment; nothing to reconcile.
		return p, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return p, &o, nil
}

// Refund issues a gateway refund, then sets the order's payment status:
// refunding the full total means refunded, any lesser amount means
// partially refunded. Only the latest refund's comparison counts; there is
// no accumulating refund ledger.
func (s *Service) Refund(ctx context.Context, saleID string, amount *decimal.Decimal, currency string) (*Refund, *orders.Order, error) {
	if amount != nil && amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, apperr.Validation("amount", "must be positive")
	}
	ref, err := s.Gateway.RefundSale(ctx, saleID, amount, currency)
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.Orders.GetByPaymentRef(ctx, saleID)
	if errors.Is(err, apperr.ErrNotFound) {
		return ref, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	ps := orders.PaymentPartiallyRefunded
	if amount == nil || amount.GreaterThanOrEqual(existing.TotalAmount) {
		ps = orders.PaymentRefunded
	}
	o, err := s.Orders.SetPaymentStatusByRef(ctx, saleID, ps)
	if err != nil {
		return nil, nil, err
	}
	return ref, &o, nil
}

func (s *Service) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) bool {
	return s.Gateway.VerifyWebhookSignature(ctx, headers, rawBody)
}

// WebhookEvent is the bit of the PayPal event body the handler needs.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

var webhookStatus = map[string]orders.PaymentStatus{
	"PAYMENT.SALE.COMPLETED": orders.PaymentPaid,
	"PAYMENT.SALE.DENIED":    orders.PaymentFailed,
	"PAYMENT.SALE.REFUNDED":  orders.PaymentRefunded,
}

// HandleWebhookEvent maps known sale events onto the order's payment
// status, keyed by the resource's parent payment. Unknown event types are
// accepted and ignored. Redelivery is safe: setting the same status twice
// is a no-op.
func (s *Service) HandleWebhookEvent(ctx context.Context, eventType string, resource json.RawMessage) (*orders.Order, error) {
	ps, known := webhookStatus[eventType]
	if !known {
		s.Log.Debug("ignoring webhook event", "event_type", eventType)
		return nil, nil
	}

	var res struct {
		ParentPayment string `json:"parent_payment"`
	}
	if err := json.Unmarshal(resource, &res); err != nil {
		return nil, apperr.Validation("resource", "malformed webhook resource")
	}
	if res.ParentPayment == "" {
		return nil, nil
	}

	o, err := s.Orders.SetPaymentStatusByRef(ctx, res.ParentPayment, ps)
	if errors.Is(err, apperr.ErrNotFound) {
		s.Log.Warn("webhook for unknown payment", "payment_id", res.ParentPayment, "event_type", eventType)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Log.Info("webhook reconciled order payment",
		"order_id", o.ID, "event_type", eventType, "payment_status", ps)
	return &o, nil
}
