package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/orders"
	"github.com/ariefcatur/go-commerce.git/internal/payments"
	"github.com/ariefcatur/go-commerce.git/internal/redisx"
)

type PaymentsHandler struct {
	Service *payments.Service
	Orders  *orders.Repo
	Redis   dedupStore
	Events  *EventPublisher
	Mw      *AuthMiddleware
}

// dedupStore is the slice of redis the webhook path needs; *redis.Client
// satisfies it.
type dedupStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type createPaymentReq struct {
	OrderID     string `json:"order_id"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	Description string `json:"description"`
}

type executePaymentReq struct {
	PaymentID string `json:"payment_id"`
	PayerID   string `json:"payer_id"`
}

type refundReq struct {
	SaleID   string           `json:"sale_id"`
	Amount   *decimal.Decimal `json:"amount"`
	Currency string           `json:"currency"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.Mw.RequireAuth)
		gr.Post("/payments/create", h.create)
		gr.Post("/payments/execute", h.execute)
	})
	r.With(h.Mw.RequireAdmin).Post("/payments/refund", h.refund)
	r.Post("/payments/webhook", h.webhook)
}

func (h *PaymentsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	// the caller can only pay for their own order
	o, err := h.Orders.GetForUser(ctx, req.OrderID, UserID(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}

	items := make([]payments.LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, payments.LineItem{
			Name:     it.ProductName,
			SKU:      it.ProductSKU,
			Price:    it.ProductPrice.StringFixed(2),
			Currency: o.Currency,
			Quantity: it.Quantity,
		})
	}
	res, err := h.Service.Create(ctx, o.ID, payments.CreatePaymentInput{
		Amount:      o.TotalAmount,
		Currency:    o.Currency,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
		Description: req.Description,
		Items:       items,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *PaymentsHandler) execute(w http.ResponseWriter, r *http.Request) {
	var req executePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PaymentID == "" || req.PayerID == "" {
		writeError(w, http.StatusBadRequest, "payment_id and payer_id are required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	p, o, err := h.Service.Execute(ctx, req.PaymentID, req.PayerID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if o != nil {
		h.Events.PaymentUpdated(r, o.ID, o.PayStatus, req.PaymentID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": p, "order": o})
}

func (h *PaymentsHandler) refund(w http.ResponseWriter, r *http.Request) {
	var req refundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SaleID == "" {
		writeError(w, http.StatusBadRequest, "sale_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	ref, o, err := h.Service.Refund(ctx, req.SaleID, req.Amount, req.Currency)
	if err != nil {
		respondErr(w, err)
		return
	}
	if o != nil {
		h.Events.PaymentUpdated(r, o.ID, o.PayStatus, o.PaymentReference)
	}
	writeJSON(w, http.StatusOK, map[string]any{"refund": ref, "order": o})
}

// webhook takes gateway notifications. Signature first, then a redis dedup
// on the event id so replays are acknowledged without effect. The dedup key
// is a claim, not a receipt: when the status update fails the claim is
// released, keeping the gateway's at-least-once redelivery meaningful.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if !h.Service.VerifyWebhookSignature(ctx, r.Header, body) {
		writeError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	var ev payments.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var dedupKey string
	if ev.ID != "" {
		dedupKey = fmt.Sprintf(redisx.KeyDedup, "webhook", ev.ID)
		set, err := h.Redis.SetNX(ctx, dedupKey, 1, redisx.TTLDedup).Result()
		if err == nil && !set {
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	o, err := h.Service.HandleWebhookEvent(ctx, ev.EventType, ev.Resource)
	if err != nil {
		if dedupKey != "" {
			// fresh context: ctx may be the reason the update failed
			dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			_ = h.Redis.Del(dctx, dedupKey).Err()
			dcancel()
		}
		respondErr(w, err)
		return
	}
	if o != nil {
		h.Events.PaymentUpdated(r, o.ID, o.PayStatus, o.PaymentReference)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
