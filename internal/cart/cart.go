package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orderhub-dev/backend-kiosk/internal/catalog"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// SpecialCategoryName marks the category whose items expand into bundled sets.
const SpecialCategoryName = "Special"

// SetPrefix labels zero-priced companion lines added by bundle expansion.
const SetPrefix = "(Set) "

// ErrSoldOut is returned when the item is flagged sold out.
var ErrSoldOut = errors.New("cart: item is sold out")

// ErrEmptyCart is returned by operations that need at least one line.
var ErrEmptyCart = errors.New("cart: cart is empty")

// DayRestrictedError reports an item ordered outside its weekday window.
type DayRestrictedError struct {
	ItemName    string
	RequiredDay string
}

func (e *DayRestrictedError) Error() string {
	return fmt.Sprintf("cart: %q is only available on %s", e.ItemName, e.RequiredDay)
}

// ChosenOption is a selected modifier recorded on a cart line.
type ChosenOption struct {
	GroupID   string        `json:"groupId"`
	GroupName string        `json:"groupName"`
	OptionID  string        `json:"optionId"`
	Name      string        `json:"name"`
	Price     pricing.Money `json:"price"`
}

// Line is a priced cart entry. Lines created by bundle expansion share a
// GroupKey with their primary line and are removed together.
type Line struct {
	ID        string         `json:"id"`
	ItemID    string         `json:"itemId"`
	Name      string         `json:"name"`
	Quantity  int            `json:"quantity"`
	UnitPrice pricing.Money  `json:"unitPrice"`
	Options   []ChosenOption `json:"options,omitempty"`
	GroupKey  string         `json:"groupKey,omitempty"`
	Companion bool           `json:"companion,omitempty"`
}

// Total is the line's quantity-extended price.
func (l Line) Total() pricing.Money {
	return l.UnitPrice * pricing.Money(l.Quantity)
}

// Cart holds the lines of a single kiosk session. Not safe for concurrent
// use; the session registry serialises access.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add validates the configured selection and appends it as a line, expanding
// bundle companions when the item belongs to the special category. Repeat adds
// of the same item never merge: each add is its own line, so removing a line
// undoes exactly one add. It returns the lines added by this call.
func (c *Cart) Add(menu *catalog.Menu, item catalog.MenuItem, sel *Selection, quantity int, now time.Time) ([]Line, error) {
	if quantity < 1 {
		quantity = 1
	}
	if item.SoldOut {
		return nil, ErrSoldOut
	}
	if ok, requiredDay := catalog.AvailableToday(item.Name, now); !ok {
		return nil, &DayRestrictedError{ItemName: item.Name, RequiredDay: requiredDay}
	}
	if sel == nil {
		sel = NewSelection(item)
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	options := sel.Options()
	companions := bundleCompanions(menu, item)

	groupKey := ""
	if len(companions) > 0 {
		groupKey = uuid.NewString()
	}
	added := []Line{{
		ID:        uuid.NewString(),
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  quantity,
		UnitPrice: sel.UnitPrice(),
		Options:   options,
		GroupKey:  groupKey,
	}}
	for _, comp := range companions {
		added = append(added, Line{
			ID:        uuid.NewString(),
			ItemID:    comp.ID,
			Name:      SetPrefix + comp.Name,
			Quantity:  quantity,
			UnitPrice: 0,
			GroupKey:  groupKey,
			Companion: true,
		})
	}
	c.lines = append(c.lines, added...)
	return added, nil
}

// Remove deletes the line and every line sharing its group key. Removing an
// unknown line is a no-op.
func (c *Cart) Remove(lineID string) {
	groupKey := ""
	for _, l := range c.lines {
		if l.ID == lineID {
			groupKey = l.GroupKey
			break
		}
	}
	kept := c.lines[:0]
	for _, l := range c.lines {
		if l.ID == lineID {
			continue
		}
		if groupKey != "" && l.GroupKey == groupKey {
			continue
		}
		kept = append(kept, l)
	}
	c.lines = kept
}

// Clear empties the cart. Clearing an empty cart is fine.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the cart's lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Summary computes order totals for the current lines.
func (c *Cart) Summary(taxBps, cardFeeBps int) pricing.Summary {
	totals := make([]pricing.Money, 0, len(c.lines))
	for _, l := range c.lines {
		totals = append(totals, l.Total())
	}
	return pricing.Compute(totals, taxBps, cardFeeBps)
}

// bundleCompanions resolves the zero-priced items that accompany a special
// category item, keyed off tokens in its description. Missing companions are
// skipped so a menu edit never blocks the sale of the primary item.
func bundleCompanions(menu *catalog.Menu, item catalog.MenuItem) []catalog.MenuItem {
	if menu == nil {
		return nil
	}
	cat, ok := menu.Category(item.CategoryID)
	if !ok || cat.Name != SpecialCategoryName {
		return nil
	}
	desc := strings.ToLower(item.Description)
	var companions []catalog.MenuItem
	if strings.Contains(desc, "fries") || strings.Contains(desc, "ff") {
		if comp, ok := menu.FindItemByNameContains("Fries", "FF"); ok && comp.ID != item.ID {
			companions = append(companions, comp)
		}
	}
	if strings.Contains(desc, "drink") {
		if comp, ok := menu.FindItemByNameContains("Soft Drink"); ok && comp.ID != item.ID {
			companions = append(companions, comp)
		}
	}
	return companions
}
