package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// SalesDay is one day of aggregated sales for a tenant.
type SalesDay struct {
	Day    time.Time     `json:"day"`
	Orders int64         `json:"orders"`
	Gross  pricing.Money `json:"gross"`
	Tax    pricing.Money `json:"tax"`
	Tips   pricing.Money `json:"tips"`
}

// TopItem is one row of the best-seller ranking. Combo companions are
// excluded; they are zero-priced bookkeeping lines.
type TopItem struct {
	Name     string        `json:"name"`
	Quantity int64         `json:"quantity"`
	Revenue  pricing.Money `json:"revenue"`
}

// Overview summarises recent trade for the back-office dashboard.
type Overview struct {
	Orders    int64         `json:"orders"`
	Gross     pricing.Money `json:"gross"`
	AvgTicket pricing.Money `json:"avgTicket"`
	DineIn    int64         `json:"dineIn"`
	TakeOut   int64         `json:"takeOut"`
}

// Service provides cached, tenant-scoped sales aggregates over the orders
// tables. Canceled orders never count.
type Service struct {
	Pool         *pgxpool.Pool
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// SalesRange returns daily sales between from (inclusive) and to (exclusive).
func (s *Service) SalesRange(ctx context.Context, tenantID string, from, to time.Time) ([]SalesDay, error) {
	if s == nil || s.Pool == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", tenantID, "sales", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []SalesDay
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day,
		       COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(tax), 0), COALESCE(SUM(tip), 0)
		FROM orders
		WHERE tenant_id = $1 AND status <> 'canceled'
		  AND created_at >= $2 AND created_at < $3
		GROUP BY 1 ORDER BY 1`,
		tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sales range: %w", err)
	}
	defer rows.Close()
	var out []SalesDay
	for rows.Next() {
		var d SalesDay
		if err := rows.Scan(&d.Day, &d.Orders, &d.Gross, &d.Tax, &d.Tips); err != nil {
			return nil, fmt.Errorf("scan sales day: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sales range: %w", err)
	}
	s.store(ctx, key, out)
	return out, nil
}

// TopItems returns the best sellers by quantity for the window.
func (s *Service) TopItems(ctx context.Context, tenantID string, from, to time.Time, limit, offset int) ([]TopItem, error) {
	if s == nil || s.Pool == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := cacheKey("an", tenantID, "top", from.Format("2006-01-02"), to.Format("2006-01-02"), limit, offset)
	var cached []TopItem
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT oi.item_name, SUM(oi.quantity), COALESCE(SUM(oi.line_total), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.tenant_id = $1 AND o.status <> 'canceled'
		  AND o.created_at >= $2 AND o.created_at < $3
		  AND NOT oi.companion
		GROUP BY oi.item_name
		ORDER BY SUM(oi.quantity) DESC, oi.item_name
		LIMIT $4 OFFSET $5`,
		tenantID, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("top items: %w", err)
	}
	defer rows.Close()
	var out []TopItem
	for rows.Next() {
		var t TopItem
		if err := rows.Scan(&t.Name, &t.Quantity, &t.Revenue); err != nil {
			return nil, fmt.Errorf("scan top item: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top items: %w", err)
	}
	s.store(ctx, key, out)
	return out, nil
}

// OverviewRange summarises the window in one row.
func (s *Service) OverviewRange(ctx context.Context, tenantID string, from, to time.Time) (Overview, error) {
	if s == nil || s.Pool == nil {
		return Overview{}, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", tenantID, "overview", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached Overview
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	var o Overview
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0),
		       COUNT(*) FILTER (WHERE order_type = 'eat-in'),
		       COUNT(*) FILTER (WHERE order_type = 'take-out')
		FROM orders
		WHERE tenant_id = $1 AND status <> 'canceled'
		  AND created_at >= $2 AND created_at < $3`,
		tenantID, from, to).Scan(&o.Orders, &o.Gross, &o.DineIn, &o.TakeOut)
	if err != nil {
		return Overview{}, fmt.Errorf("overview: %w", err)
	}
	if o.Orders > 0 {
		o.AvgTicket = o.Gross / pricing.Money(o.Orders)
	}
	s.store(ctx, key, o)
	return o, nil
}

func (s *Service) fromCache(ctx context.Context, key string, target any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, target) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
