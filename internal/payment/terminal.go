package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// HTTPTerminal talks to the card reader gateway over its REST API.
type HTTPTerminal struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPTerminal constructs a terminal client with traced outbound requests.
func NewHTTPTerminal(baseURL, apiKey string) *HTTPTerminal {
	return &HTTPTerminal{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type intentPayload struct {
	ID       string            `json:"id"`
	Amount   pricing.Money     `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateIntent opens a charge on the reader.
func (t *HTTPTerminal) CreateIntent(ctx context.Context, amount pricing.Money, metadata map[string]string) (Intent, error) {
	body, err := json.Marshal(intentPayload{Amount: amount, Currency: "usd", Metadata: metadata})
	if err != nil {
		return Intent{}, err
	}
	var out intentPayload
	if err := t.do(ctx, http.MethodPost, "/v1/payment_intents", bytes.NewReader(body), &out); err != nil {
		return Intent{}, err
	}
	return Intent{ID: out.ID, Amount: out.Amount, Status: normalizeStatus(out.Status)}, nil
}

// IntentStatus reads the current state of a charge.
func (t *HTTPTerminal) IntentStatus(ctx context.Context, id string) (Intent, error) {
	var out intentPayload
	if err := t.do(ctx, http.MethodGet, "/v1/payment_intents/"+id, nil, &out); err != nil {
		return Intent{}, err
	}
	return Intent{ID: out.ID, Amount: out.Amount, Status: normalizeStatus(out.Status)}, nil
}

// CancelIntent releases an abandoned charge on the reader.
func (t *HTTPTerminal) CancelIntent(ctx context.Context, id string) error {
	return t.do(ctx, http.MethodPost, "/v1/payment_intents/"+id+"/cancel", nil, nil)
}

func (t *HTTPTerminal) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("terminal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("terminal %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func normalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded", "captured":
		return StatusSucceeded
	case "failed", "declined":
		return StatusFailed
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return StatusPending
	}
}
