package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-commerce.git/internal/checkout"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
	"github.com/ariefcatur/go-commerce.git/internal/redisx"
)

type OrdersHandler struct {
	Checkout *checkout.Service
	Repo     *orders.Repo
	Redis    *redis.Client
	Events   *EventPublisher
	Mw       *AuthMiddleware
}

type createOrderReq struct {
	ShippingAddress orders.Address `json:"shipping_address"`
	BillingAddress  orders.Address `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method"`
	CustomerNotes   string         `json:"customer_notes"`
	Currency        string         `json:"currency"`
}

type setStatusReq struct {
	Status     orders.Status `json:"status"`
	AdminNotes string        `json:"admin_notes"`
}

type listResp struct {
	Orders  []orders.Order `json:"orders"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.Mw.RequireAuth)
		gr.Post("/orders", h.create)
		gr.Get("/orders", h.listMine)
		gr.Get("/orders/{id}", h.get)
		gr.Get("/orders/{id}/status", h.getStatus)
		gr.Post("/orders/{id}/cancel", h.cancel)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.Mw.RequireAdmin)
		gr.Get("/orders/admin/all", h.adminList)
		gr.Put("/orders/admin/{id}/status", h.adminSetStatus)
		gr.Get("/orders/stats", h.stats)
	})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := UserID(r.Context())
	o, err := h.Checkout.CreateOrder(ctx, userID, checkout.Input{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		CustomerNotes:   req.CustomerNotes,
		Currency:        req.Currency,
	})
	if err != nil {
		respondErr(w, err)
		return
	}

	h.cacheStatus(ctx, &o)
	_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyCartCount, userID), 0, redisx.TTLCartCount).Err()
	h.Events.OrderCreated(r, &o)

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f := filterFromQuery(r)
	f.UserID = UserID(r.Context())
	list, total, err := h.Repo.List(ctx, f)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResp{Orders: list, Total: total, Page: f.Page, PerPage: f.PerPage})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Repo.GetForUser(ctx, chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")

	// ownership holds even on a cache hit
	o, err := h.Repo.GetForUser(ctx, orderID, UserID(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}
	h.cacheStatus(ctx, &o)
	writeJSON(w, http.StatusOK, statusBody(&o))
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, restored, err := h.Repo.Cancel(ctx, chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheStatus(ctx, &o)
	h.Events.OrderCancelled(r, &o, restored)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) adminList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f := filterFromQuery(r)
	f.UserID = r.URL.Query().Get("user_id")
	list, total, err := h.Repo.List(ctx, f)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResp{Orders: list, Total: total, Page: f.Page, PerPage: f.PerPage})
}

func (h *OrdersHandler) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, prev, err := h.Repo.AdminSetStatus(ctx, chi.URLParam(r, "id"), req.Status, req.AdminNotes)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheStatus(ctx, &o)
	if prev != o.Status {
		h.Events.OrderStatusChanged(r, o.ID, prev, o.Status)
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st, err := h.Repo.Stats(ctx)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(statusBody(o))
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func statusBody(o *orders.Order) map[string]any {
	return map[string]any{
		"order_id":       o.ID,
		"order_number":   o.OrderNumber,
		"status":         o.Status,
		"payment_status": o.PayStatus,
	}
}

func filterFromQuery(r *http.Request) orders.Filter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return orders.Filter{
		Status:        orders.Status(q.Get("status")),
		PaymentStatus: orders.PaymentStatus(q.Get("payment_status")),
		OrderNumber:   q.Get("order_number"),
		Page:          page,
		PerPage:       perPage,
	}
}
