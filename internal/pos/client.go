package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
	"github.com/orderhub-dev/backend-kiosk/internal/resilience"
)

// Client mirrors paid kiosk orders into the store's register so staff see
// them alongside counter sales. The register API only accepts one line item
// post at a time and drops rapid-fire requests, so lines go out sequentially
// with a small gap between posts.
type Client struct {
	BaseURL    string
	MerchantID string
	Token      string
	HTTP       resilience.HTTPClient
	LineDelay  time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a register client with traced, retried requests.
func NewClient(baseURL, merchantID, token string, breaker *resilience.Breaker) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		MerchantID: merchantID,
		Token:      token,
		HTTP: resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   15 * time.Second,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     breaker,
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
		},
		LineDelay: 100 * time.Millisecond,
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type createOrderRequest struct {
	ExternalRef string `json:"externalReferenceId"`
	Title       string `json:"title"`
	State       string `json:"state"`
	Total       int64  `json:"total"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

type lineItemRequest struct {
	Name    string `json:"name"`
	Price   int64  `json:"price"`
	UnitQty int    `json:"unitQty"`
	Note    string `json:"note,omitempty"`
}

type paymentRequest struct {
	Amount      int64  `json:"amount"`
	TipAmount   int64  `json:"tipAmount"`
	ExternalRef string `json:"externalReferenceId"`
	Tender      string `json:"tender"`
}

// Sync mirrors the order: create, post each line in sequence, record the
// already-captured charge as an external payment.
func (c *Client) Sync(ctx context.Context, o *order.Order) error {
	if o == nil {
		return errors.New("pos: nil order")
	}
	title := "Kiosk"
	if o.TableNumber != nil {
		title = "Kiosk table " + *o.TableNumber
	} else if o.Type == order.TypeTakeOut {
		title = "Kiosk take-out"
	}
	var created createOrderResponse
	err := c.post(ctx, c.ordersPath(""), createOrderRequest{
		ExternalRef: o.ID,
		Title:       title,
		State:       "open",
		Total:       o.Total,
	}, &created)
	if err != nil {
		return fmt.Errorf("create register order: %w", err)
	}
	if created.ID == "" {
		return errors.New("pos: register returned no order id")
	}

	for i, line := range o.Lines {
		if i > 0 {
			if err := c.sleep(ctx, c.LineDelay); err != nil {
				return err
			}
		}
		req := lineItemRequest{Name: line.ItemName, Price: line.UnitPrice, UnitQty: line.Quantity, Note: optionNote(line)}
		if err := c.post(ctx, c.ordersPath(created.ID)+"/line_items", req, nil); err != nil {
			return fmt.Errorf("post line %q: %w", line.ItemName, err)
		}
	}
	if o.Tip > 0 {
		if err := c.sleep(ctx, c.LineDelay); err != nil {
			return err
		}
		req := lineItemRequest{Name: "Tip", Price: o.Tip, UnitQty: 1}
		if err := c.post(ctx, c.ordersPath(created.ID)+"/line_items", req, nil); err != nil {
			return fmt.Errorf("post tip line: %w", err)
		}
	}

	err = c.post(ctx, c.ordersPath(created.ID)+"/payments", paymentRequest{
		Amount:      o.Total,
		TipAmount:   o.Tip,
		ExternalRef: o.PaymentRef,
		Tender:      "external",
	}, nil)
	if err != nil {
		return fmt.Errorf("record external payment: %w", err)
	}
	return nil
}

func (c *Client) ordersPath(orderID string) string {
	base := fmt.Sprintf("/v3/merchants/%s/orders", c.MerchantID)
	if orderID == "" {
		return base
	}
	return base + "/" + orderID
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("register %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func optionNote(line order.Line) string {
	if len(line.Options) == 0 {
		return ""
	}
	parts := make([]string, 0, len(line.Options))
	for _, opt := range line.Options {
		if opt.Price > 0 {
			parts = append(parts, fmt.Sprintf("%s (+%s)", opt.Name, pricing.FormatUSD(opt.Price)))
			continue
		}
		parts = append(parts, opt.Name)
	}
	return strings.Join(parts, ", ")
}
