package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-commerce.git/internal/cart"
	"github.com/ariefcatur/go-commerce.git/internal/redisx"
)

type CartHandler struct {
	Service *cart.Service
	Redis   *redis.Client
	Mw      *AuthMiddleware
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateItemReq struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.Mw.RequireAuth)
		gr.Get("/cart", h.get)
		gr.Post("/cart/add", h.addItem)
		gr.Put("/cart/update/{item_id}", h.updateItem)
		gr.Delete("/cart/remove/{item_id}", h.removeItem)
		gr.Delete("/cart/clear", h.clear)
		gr.Get("/cart/count", h.count)
		gr.Post("/cart/validate", h.validate)
	})
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Service.Get(ctx, UserID(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.ToView())
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := UserID(r.Context())
	c, err := h.Service.AddItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheCount(ctx, userID, &c)
	writeJSON(w, http.StatusOK, c.ToView())
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := UserID(r.Context())
	c, err := h.Service.UpdateItemQuantity(ctx, userID, chi.URLParam(r, "item_id"), req.Quantity)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheCount(ctx, userID, &c)
	writeJSON(w, http.StatusOK, c.ToView())
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := UserID(r.Context())
	c, err := h.Service.RemoveItem(ctx, userID, chi.URLParam(r, "item_id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheCount(ctx, userID, &c)
	writeJSON(w, http.StatusOK, c.ToView())
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := UserID(r.Context())
	c, err := h.Service.Clear(ctx, userID)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheCount(ctx, userID, &c)
	writeJSON(w, http.StatusOK, c.ToView())
}

func (h *CartHandler) count(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	userID := UserID(r.Context())
	key := fmt.Sprintf(redisx.KeyCartCount, userID)
	if n, err := h.Redis.Get(ctx, key).Int(); err == nil {
		writeJSON(w, http.StatusOK, map[string]int{"count": n})
		return
	}

	c, err := h.Service.Get(ctx, userID)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheCount(ctx, userID, &c)
	writeJSON(w, http.StatusOK, map[string]int{"count": c.TotalItems()})
}

// validate reconciles the cart against the current catalog: stale prices
// are refreshed, quantities capped to stock, dead items dropped.
func (h *CartHandler) validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := UserID(r.Context())
	issues, adjusted, c, err := h.Service.Reconcile(ctx, userID)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheCount(ctx, userID, &c)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":          len(issues) == 0,
		"issues":         issues,
		"adjusted_items": adjusted,
		"cart":           c.ToView(),
	})
}

func (h *CartHandler) cacheCount(ctx context.Context, userID string, c *cart.Cart) {
	key := fmt.Sprintf(redisx.KeyCartCount, userID)
	_ = h.Redis.Set(ctx, key, c.TotalItems(), redisx.TTLCartCount).Err()
}
