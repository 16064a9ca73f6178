package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// respondErr maps domain errors onto HTTP statuses. Internal errors are
// never echoed back to the client.
func respondErr(w http.ResponseWriter, err error) {
	var (
		vErr   *apperr.ValidationError
		invErr *apperr.InsufficientInventoryError
		trErr  *apperr.InvalidTransitionError
		gwErr  *apperr.GatewayError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": vErr.Msg,
			"field": vErr.Field,
		})
	case errors.As(err, &invErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":              invErr.Error(),
			"product_id":         invErr.ProductID,
			"available_quantity": invErr.Available,
			"current_in_cart":    invErr.InCart,
		})
	case errors.As(err, &trErr):
		writeError(w, http.StatusBadRequest, trErr.Error())
	case errors.Is(err, apperr.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, apperr.ErrUnavailable):
		writeError(w, http.StatusBadRequest, "product is not available")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, apperr.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.As(err, &gwErr):
		writeError(w, http.StatusBadGateway, "payment gateway error")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
