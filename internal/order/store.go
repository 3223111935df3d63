package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested order does not exist for the tenant.
var ErrNotFound = errors.New("order: not found")

// ErrPersist wraps any failure while writing a paid order. Callers treat it
// as the paid-but-unrecorded case and journal the draft.
var ErrPersist = errors.New("order: persist failed")

// Store provides order persistence on Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// Save writes the order header and all lines in one transaction. A partial
// write never becomes visible; any failure surfaces as ErrPersist.
func (s *Store) Save(ctx context.Context, o *Order) error {
	if s == nil || s.Pool == nil {
		return fmt.Errorf("%w: store not configured", ErrPersist)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrPersist, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, tenant_id, order_type, table_number, status,
		        subtotal, tax, card_fee, tip, total, payment_ref, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12)`,
		o.ID, o.TenantID, string(o.Type), o.TableNumber, string(o.Status),
		o.Subtotal, o.Tax, o.CardFee, o.Tip, o.Total, o.PaymentRef, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert order: %v", ErrPersist, err)
	}
	for _, line := range o.Lines {
		opts, err := json.Marshal(line.Options)
		if err != nil {
			return fmt.Errorf("%w: marshal options: %v", ErrPersist, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, item_name, quantity, unit_price, line_total, options, group_key, companion)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)`,
			line.ID, o.ID, line.ItemName, line.Quantity, line.UnitPrice, line.LineTotal, opts, line.GroupKey, line.Companion)
		if err != nil {
			return fmt.Errorf("%w: insert line: %v", ErrPersist, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrPersist, err)
	}
	return nil
}

// ListParams filters the order listing for the KDS and back office.
type ListParams struct {
	Status Status
	Limit  int
}

// List returns the tenant's orders, newest first, with lines attached.
func (s *Store) List(ctx context.Context, tenantID string, params ListParams) ([]Order, error) {
	limit := params.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, tenant_id, order_type, table_number, status,
	                 subtotal, tax, card_fee, tip, total, COALESCE(payment_ref, ''), created_at
	          FROM orders WHERE tenant_id = $1`
	args := []any{tenantID}
	if params.Status != "" {
		query += ` AND status = $2`
		args = append(args, string(params.Status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	index := make(map[string]int)
	for rows.Next() {
		var o Order
		var orderType, status string
		if err := rows.Scan(&o.ID, &o.TenantID, &orderType, &o.TableNumber, &status,
			&o.Subtotal, &o.Tax, &o.CardFee, &o.Tip, &o.Total, &o.PaymentRef, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Type = Type(orderType)
		o.Status = Status(status)
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	lineRows, err := s.Pool.Query(ctx,
		`SELECT order_id, id, item_name, quantity, unit_price, line_total, options, COALESCE(group_key, ''), companion
		 FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`,
		ids)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var orderID string
		var line Line
		var opts []byte
		if err := lineRows.Scan(&orderID, &line.ID, &line.ItemName, &line.Quantity,
			&line.UnitPrice, &line.LineTotal, &opts, &line.GroupKey, &line.Companion); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if len(opts) > 0 {
			_ = json.Unmarshal(opts, &line.Options)
		}
		if idx, ok := index[orderID]; ok {
			orders[idx].Lines = append(orders[idx].Lines, line)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	return orders, nil
}

// Get returns a single order with lines.
func (s *Store) Get(ctx context.Context, tenantID, id string) (Order, error) {
	var o Order
	var orderType, status string
	err := s.Pool.QueryRow(ctx,
		`SELECT id, tenant_id, order_type, table_number, status,
		        subtotal, tax, card_fee, tip, total, COALESCE(payment_ref, ''), created_at
		 FROM orders WHERE tenant_id = $1 AND id = $2`,
		tenantID, id).Scan(&o.ID, &o.TenantID, &orderType, &o.TableNumber, &status,
		&o.Subtotal, &o.Tax, &o.CardFee, &o.Tip, &o.Total, &o.PaymentRef, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	o.Type = Type(orderType)
	o.Status = Status(status)

	rows, err := s.Pool.Query(ctx,
		`SELECT id, item_name, quantity, unit_price, line_total, options, COALESCE(group_key, ''), companion
		 FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		var opts []byte
		if err := rows.Scan(&line.ID, &line.ItemName, &line.Quantity, &line.UnitPrice,
			&line.LineTotal, &opts, &line.GroupKey, &line.Companion); err != nil {
			return Order{}, fmt.Errorf("scan order line: %w", err)
		}
		if len(opts) > 0 {
			_ = json.Unmarshal(opts, &line.Options)
		}
		o.Lines = append(o.Lines, line)
	}
	return o, rows.Err()
}

// UpdateStatus transitions an order for the KDS.
func (s *Store) UpdateStatus(ctx context.Context, tenantID, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("order: invalid status %q", strings.TrimSpace(string(status)))
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE orders SET status = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, string(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
