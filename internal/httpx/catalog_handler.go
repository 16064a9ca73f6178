package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/catalog"
)

type CatalogHandler struct {
	Repo *catalog.Repo
	Mw   *AuthMiddleware
}

type productReq struct {
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	TrackInventory    bool            `json:"track_inventory"`
	InventoryQuantity int             `json:"inventory_quantity"`
	IsActive          bool            `json:"is_active"`
	CategoryID        string          `json:"category_id"`
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Get("/categories", h.listCategories)
	r.Group(func(gr chi.Router) {
		gr.Use(h.Mw.RequireAdmin)
		gr.Post("/products", h.create)
		gr.Put("/products/{id}", h.update)
		gr.Post("/categories", h.createCategory)
	})
}

type productListResp struct {
	Products []catalog.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PerPage  int               `json:"per_page"`
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	f := productFilterFromQuery(r)
	ps, total, err := h.Repo.ListActive(ctx, f)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productListResp{Products: ps, Total: total, Page: f.Page, PerPage: f.PerPage})
}

func productFilterFromQuery(r *http.Request) catalog.Filter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	f := catalog.Filter{
		CategoryID: q.Get("category_id"),
		Page:       page,
		PerPage:    perPage,
	}
	if s := q.Get("min_price"); s != "" {
		if d, err := decimal.NewFromString(s); err == nil {
			f.MinPrice = &d
		}
	}
	if s := q.Get("max_price"); s != "" {
		if d, err := decimal.NewFromString(s); err == nil {
			f.MaxPrice = &d
		}
	}
	return f
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Repo.ListCategories(ctx)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *CatalogHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var c catalog.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if c.Name == "" || c.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.CreateCategory(ctx, &c); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SKU == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "sku and name are required")
		return
	}
	if req.Price.IsNegative() {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p := catalog.Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price,
		TrackInventory:    req.TrackInventory,
		InventoryQuantity: req.InventoryQuantity,
		IsActive:          req.IsActive,
		CategoryID:        req.CategoryID,
	}
	if err := h.Repo.Create(ctx, &p); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	p.SKU = req.SKU
	p.Name = req.Name
	p.Description = req.Description
	p.Price = req.Price
	p.TrackInventory = req.TrackInventory
	p.InventoryQuantity = req.InventoryQuantity
	p.IsActive = req.IsActive
	p.CategoryID = req.CategoryID
	if err := h.Repo.Update(ctx, &p); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
