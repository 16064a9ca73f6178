package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/logx"
)

// fakePayPal serves the handful of endpoints the client touches.
func fakePayPal(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123", "expires_in": 3600,
		})
	})
	mux.HandleFunc("/v1/payments/payment", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Intent       string `json:"intent"`
			Transactions []struct {
				Amount Amount `json:"amount"`
			} `json:"transactions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sale", body.Intent)
		require.Len(t, body.Transactions, 1)
		assert.Equal(t, "33.00", body.Transactions[0].Amount.Total)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Payment{
			ID: "PAY-1", State: "created",
			Links: []Link{{Rel: "approval_url", Href: "https://paypal.example/approve/PAY-1"}},
		})
	})
	mux.HandleFunc("/v1/payments/payment/PAY-1/execute", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Payment{ID: "PAY-1", State: "approved"})
	})
	mux.HandleFunc("/v1/payments/sale/SALE-1/refund", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]Amount
		_ = json.NewDecoder(r.Body).Decode(&body)
		ref := Refund{ID: "R-1", State: "completed"}
		if a, ok := body["amount"]; ok {
			ref.Amount = &a
		}
		_ = json.NewEncoder(w).Encode(ref)
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WebhookID string `json:"webhook_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		status := "FAILURE"
		if req.WebhookID == "wh-1" {
			status = "SUCCESS"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": status})
	})
	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, srv *httptest.Server, webhookID string) *Client {
	t.Helper()
	return NewClient(Config{
		Mode:      "sandbox",
		ClientID:  "client-id",
		Secret:    "client-secret",
		WebhookID: webhookID,
		BaseURL:   srv.URL,
	}, logx.NewNop())
}

func TestClient_CreateExecuteRefund(t *testing.T) {
	var tokenCalls int32
	srv := fakePayPal(t, &tokenCalls)
	defer srv.Close()
	c := newTestClient(t, srv, "")

	p, err := c.CreatePayment(context.Background(), CreatePaymentInput{
		Amount:   decimal.RequireFromString("33.00"),
		Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", p.ID)
	assert.Equal(t, "https://paypal.example/approve/PAY-1", p.ApprovalURL())

	p, err = c.ExecutePayment(context.Background(), "PAY-1", "PAYER-9")
	require.NoError(t, err)
	assert.Equal(t, "approved", p.State)

	amount := decimal.RequireFromString("10.00")
	ref, err := c.RefundSale(context.Background(), "SALE-1", &amount, "USD")
	require.NoError(t, err)
	require.NotNil(t, ref.Amount)
	assert.Equal(t, "10.00", ref.Amount.Total)

	ref, err = c.RefundSale(context.Background(), "SALE-1", nil, "")
	require.NoError(t, err)
	assert.Nil(t, ref.Amount)

	// the oauth token is cached across calls
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestClient_GatewayErrorOnAPIFailure(t *testing.T) {
	var tokenCalls int32
	srv := fakePayPal(t, &tokenCalls)
	defer srv.Close()
	c := newTestClient(t, srv, "")

	_, err := c.ExecutePayment(context.Background(), "PAY-MISSING", "PAYER-9")
	var gwErr *apperr.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "execute payment", gwErr.Op)
}

func TestClient_VerifyWebhookSignature(t *testing.T) {
	var tokenCalls int32
	srv := fakePayPal(t, &tokenCalls)
	defer srv.Close()

	ok := newTestClient(t, srv, "wh-1").VerifyWebhookSignature(context.Background(), http.Header{}, []byte(`{}`))
	assert.True(t, ok)

	ok = newTestClient(t, srv, "wh-other").VerifyWebhookSignature(context.Background(), http.Header{}, []byte(`{}`))
	assert.False(t, ok)
}
