package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docmarket/internal/config"
)

// httpGateway talks to a REST payment provider. Requests carry basic auth
// (key id / key secret) and an idempotency key, and run under an explicit
// per-call timeout so a stalled gateway cannot hold a request open longer
// than our own callers are willing to wait.
type httpGateway struct {
	baseURL string
	keyID   string
	secret  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTP creates a Gateway backed by the provider's REST API. The underlying
// transport is traced via otelhttp.
func NewHTTP(cfg config.GatewayConfig) (Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("gateway credentials are required")
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpGateway{
		baseURL: cfg.BaseURL,
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
		timeout: timeout,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type createIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (g *httpGateway) CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*Intent, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("intent amount must be positive, got %d", amount)
	}

	var intent Intent
	err := g.post(ctx, "/v1/orders", receipt, createIntentRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, &intent)
	if err != nil {
		return nil, err
	}

	// Never trust an intent whose echoed amount differs from what we asked
	// to charge; a mismatch here is a charge for the wrong money.
	if intent.Amount != amount || intent.Currency != currency {
		return nil, fmt.Errorf("%w: requested %d %s, got %d %s",
			ErrAmountMismatch, amount, currency, intent.Amount, intent.Currency)
	}
	return &intent, nil
}

func (g *httpGateway) Refund(ctx context.Context, paymentID string, amount int64, reason string) (*RefundResult, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id is required")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("refund amount must be positive, got %d", amount)
	}

	var res RefundResult
	path := "/v1/payments/" + paymentID + "/refund"
	if err := g.post(ctx, path, "", refundRequest{Amount: amount, Reason: reason}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// post issues a JSON POST and decodes the response into out. Timeouts and
// transport failures map to ErrTimeout (outcome unknown, retryable); 4xx/5xx
// responses map to ErrRejected (explicit refusal).
func (g *httpGateway) post(ctx context.Context, path, idempotencyKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.secret)
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		// Transport-level failure: the request may or may not have reached
		// the gateway, so treat it like a timeout rather than a rejection.
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
