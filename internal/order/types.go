package order

import (
	"time"

	"github.com/orderhub-dev/backend-kiosk/internal/cart"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// Type distinguishes dine-in orders (with a table) from take-out.
type Type string

const (
	TypeDineIn  Type = "eat-in"
	TypeTakeOut Type = "take-out"
)

// DefaultTable is assigned when a dine-in guest skips table entry.
const DefaultTable = "00"

// Status is the kitchen-facing lifecycle of a persisted order. Orders are
// created pending; the KDS moves them forward.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Line is a persisted order line. Option details are denormalised so the
// ticket survives later menu edits.
type Line struct {
	ID        string            `json:"id"`
	ItemName  string            `json:"itemName"`
	Quantity  int               `json:"quantity"`
	UnitPrice pricing.Money     `json:"unitPrice"`
	LineTotal pricing.Money     `json:"lineTotal"`
	Options   []cart.ChosenOption `json:"options,omitempty"`
	GroupKey  string            `json:"groupKey,omitempty"`
	Companion bool              `json:"companion,omitempty"`
}

// Order is the persisted record of a paid kiosk checkout.
type Order struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId"`
	Type        Type          `json:"type"`
	TableNumber *string       `json:"tableNumber,omitempty"`
	Status      Status        `json:"status"`
	Subtotal    pricing.Money `json:"subtotal"`
	Tax         pricing.Money `json:"tax"`
	CardFee     pricing.Money `json:"cardFee"`
	Tip         pricing.Money `json:"tip"`
	Total       pricing.Money `json:"total"`
	PaymentRef  string        `json:"paymentRef,omitempty"`
	Lines       []Line        `json:"lines"`
	CreatedAt   time.Time     `json:"createdAt"`
}
