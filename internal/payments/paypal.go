package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/logx"
)

const (
	sandboxBaseURL = "https://api.sandbox.paypal.com"
	liveBaseURL    = "https://api.paypal.com"
)

// Client talks to the PayPal REST API. All calls go through the configured
// http.Client timeout, so a stuck gateway surfaces as a GatewayError
// instead of a hung request.
type Client struct {
	BaseURL   string
	ClientID  string
	Secret    string
	WebhookID string

	HTTP *http.Client
	Log  *logx.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

type Config struct {
	Mode      string // sandbox | live
	ClientID  string
	Secret    string
	WebhookID string
	BaseURL   string // override, mostly for tests
}

func NewClient(cfg Config, log *logx.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		if strings.EqualFold(cfg.Mode, "live") {
			base = liveBaseURL
		} else {
			base = sandboxBaseURL
		}
	}
	return &Client{
		BaseURL:   base,
		ClientID:  cfg.ClientID,
		Secret:    cfg.Secret,
		WebhookID: cfg.WebhookID,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		Log:       log,
	}
}

type Amount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type LineItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

type Payment struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Links []Link `json:"links"`
}

// ApprovalURL is where the payer approves the payment.
func (p *Payment) ApprovalURL() string {
	for _, l := range p.Links {
		if l.Rel == "approval_url" {
			return l.Href
		}
	}
	return ""
}

type Refund struct {
	ID     string  `json:"id"`
	State  string  `json:"state"`
	Amount *Amount `json:"amount,omitempty"`
}

type CreatePaymentInput struct {
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	CancelURL   string
	Description string
	Items       []LineItem
}

func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	tx := map[string]any{
		"amount":      Amount{Total: in.Amount.StringFixed(2), Currency: in.Currency},
		"description": in.Description,
	}
	if len(in.Items) > 0 {
		tx["item_list"] = map[string]any{"items": in.Items}
	}
	body := map[string]any{
		"intent": "sale",
		"payer":  map[string]any{"payment_method": "paypal"},
		"redirect_urls": map[string]any{
			"return_url": in.ReturnURL,
			"cancel_url": in.CancelURL,
		},
		"transactions": []any{tx},
	}

	var p Payment
	if err := c.do(ctx, http.MethodPost, "/v1/payments/payment", body, &p); err != nil {
		return nil, apperr.Gateway("create payment", err)
	}
	c.Log.Info("paypal payment created", "payment_id", p.ID, "state", p.State)
	return &p, nil
}

func (c *Client) ExecutePayment(ctx context.Context, paymentID, payerID string) (*Payment, error) {
	var p Payment
	path := fmt.Sprintf("/v1/payments/payment/%s/execute", url.PathEscape(paymentID))
	err := c.do(ctx, http.MethodPost, path, map[string]any{"payer_id": payerID}, &p)
	if err != nil {
		return nil, apperr.Gateway("execute payment", err)
	}
	c.Log.Info("paypal payment executed", "payment_id", p.ID, "state", p.State)
	return &p, nil
}

// RefundSale refunds a captured sale. amount nil means a full refund.
func (c *Client) RefundSale(ctx context.Context, saleID string, amount *decimal.Decimal, currency string) (*Refund, error) {
	body := map[string]any{}
	if amount != nil {
		body["amount"] = Amount{Total: amount.StringFixed(2), Currency: currency}
	}
	var ref Refund
	path := fmt.Sprintf("/v1/payments/sale/%s/refund", url.PathEscape(saleID))
	if err := c.do(ctx, http.MethodPost, path, body, &ref); err != nil {
		return nil, apperr.Gateway("refund sale", err)
	}
	c.Log.Info("paypal refund created", "refund_id", ref.ID, "state", ref.State)
	return &ref, nil
}

// VerifyWebhookSignature asks PayPal to verify the delivery. Without a
// configured webhook id there is nothing to verify against, so the answer
// is always false — never trivially true.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) bool {
	if c.WebhookID == "" {
		c.Log.Warn("paypal webhook id not configured; rejecting delivery")
		return false
	}
	req := map[string]any{
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"webhook_id":        c.WebhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}
	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		c.Log.Error("paypal webhook verification call failed", "err", err)
		return false
	}
	return resp.VerificationStatus == "SUCCESS"
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: status %d", resp.StatusCode)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	c.token = tok.AccessToken
	// renew a minute early
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("oauth token: %w", err)
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: status %d %s %s", method, path, resp.StatusCode, apiErr.Name, apiErr.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
