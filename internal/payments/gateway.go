package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Gateway is the outbound side of the payment provider: checkout sessions
// fund wallets, transfers pay creators out.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, amount int64, currency string, metadata map[string]string) (*CheckoutSession, error)
	// CreateTransfer sends a payout. idempotencyKey makes a retried call
	// return the original transfer instead of moving money again.
	CreateTransfer(ctx context.Context, destinationAccount string, amount int64, currency, idempotencyKey string) (string, error)
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StripeGateway talks to the Stripe REST API with form-encoded requests.
type StripeGateway struct {
	baseURL    string
	secretKey  string
	successURL string
	cancelURL  string
	client     *http.Client
}

func NewStripeGateway(baseURL, secretKey, successURL, cancelURL string) *StripeGateway {
	return &StripeGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, amount int64, currency string, metadata map[string]string) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", g.successURL)
	form.Set("cancel_url", g.cancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Wallet top-up")
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var session CheckoutSession
	if err := g.post(ctx, "/v1/checkout/sessions", form, "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, destinationAccount string, amount int64, currency, idempotencyKey string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("destination", destinationAccount)

	var transfer struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, "/v1/transfers", form, idempotencyKey, &transfer); err != nil {
		return "", err
	}
	return transfer.ID, nil
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, idempotencyKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
