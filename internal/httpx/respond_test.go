package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
)

func TestRespondErr_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Validation("quantity", "must be at least 1"), http.StatusBadRequest},
		{"empty cart", apperr.ErrEmptyCart, http.StatusBadRequest},
		{"unavailable", apperr.ErrUnavailable, http.StatusBadRequest},
		{"insufficient", &apperr.InsufficientInventoryError{ProductName: "Widget", Requested: 5, Available: 2}, http.StatusBadRequest},
		{"transition", &apperr.InvalidTransitionError{From: "delivered", To: "pending"}, http.StatusBadRequest},
		{"not found", apperr.ErrNotFound, http.StatusNotFound},
		{"unauthorized", apperr.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", apperr.ErrForbidden, http.StatusForbidden},
		{"gateway", apperr.Gateway("create payment", errors.New("boom")), http.StatusBadGateway},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondErr(rec, tc.err)
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestRespondErr_InsufficientInventoryBody(t *testing.T) {
	rec := httptest.NewRecorder()
	respondErr(rec, &apperr.InsufficientInventoryError{
		ProductID: "p1", ProductName: "Widget", Requested: 5, Available: 2, InCart: 3,
	})

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "p1", body["product_id"])
	assert.Equal(t, float64(2), body["available_quantity"])
	assert.Equal(t, float64(3), body["current_in_cart"])
}

func TestRespondErr_InternalErrorIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	respondErr(rec, errors.New("pq: password authentication failed for user app"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body["error"])
}
