package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/orderhub-dev/backend-kiosk/internal/obs"
	"github.com/orderhub-dev/backend-kiosk/internal/queue"
	"github.com/orderhub-dev/backend-kiosk/internal/resilience"
)

// Client sends rendered tickets to the in-store print agent.
type Client struct {
	BaseURL string
	Token   string
	HTTP    resilience.HTTPClient
}

// NewClient constructs a print agent client with traced, retried requests.
func NewClient(baseURL, token string, breaker *resilience.Breaker) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   10 * time.Second,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     breaker,
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
		},
	}
}

// Print submits the ticket to the agent's queue.
func (c *Client) Print(ctx context.Context, tenantID string, ticket Ticket) error {
	payload, err := json.Marshal(map[string]any{"tenantId": tenantID, "ticket": ticket})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/print", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("print agent: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("print agent: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}

// Handler is the worker handler for ticket print tasks.
type Handler struct {
	Client *Client
	Log    zerolog.Logger
}

// Handle renders and prints the ticket for one paid order.
func (h *Handler) Handle(ctx context.Context, task queue.Task) error {
	decoded, err := queue.DecodeOrderTask(task.Payload)
	if err != nil {
		return err
	}
	ticket := Render(decoded.Order)
	if err := h.Client.Print(ctx, decoded.TenantID, ticket); err != nil {
		if obs.TicketPrintTotal != nil {
			obs.TicketPrintTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	if obs.TicketPrintTotal != nil {
		obs.TicketPrintTotal.WithLabelValues("ok").Inc()
	}
	h.Log.Info().
		Str("tenant_id", decoded.TenantID).
		Str("order_id", decoded.Order.ID).
		Msg("kitchen ticket printed")
	return nil
}
