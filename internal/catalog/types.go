package catalog

import (
	"strings"

	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// Category groups menu items for tab navigation on the kiosk.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

// ModifierOption is a selectable value inside a modifier group. Price is the
// delta added on top of the item's base price when selected.
type ModifierOption struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Price     pricing.Money `json:"price"`
	SortOrder int           `json:"sortOrder"`
}

// ModifierGroup is a named set of choices attachable to a menu item.
// MaxSelection semantics: 0 = unlimited, 1 = exclusive (radio), >1 = bounded
// multi-select. Invariant: IsRequired implies MinSelection >= 1.
type ModifierGroup struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	IsRequired   bool             `json:"isRequired"`
	MinSelection int              `json:"minSelection"`
	MaxSelection int              `json:"maxSelection"`
	Options      []ModifierOption `json:"options"`
}

// Option returns the group's option with the given id.
func (g ModifierGroup) Option(id string) (ModifierOption, bool) {
	for _, opt := range g.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return ModifierOption{}, false
}

// MenuItem is a sellable catalog entry. Immutable during a kiosk session
// except the sold-out flag, which admins control.
type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       pricing.Money   `json:"price"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CategoryID  string          `json:"categoryId"`
	SoldOut     bool            `json:"soldOut"`
	SortOrder   int             `json:"sortOrder"`
	Groups      []ModifierGroup `json:"modifierGroups,omitempty"`
}

// Group returns the item's modifier group with the given id.
func (m MenuItem) Group(id string) (ModifierGroup, bool) {
	for _, g := range m.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return ModifierGroup{}, false
}

// Menu is the read-only per-tenant catalog snapshot a kiosk session works
// against. Refreshed by reload, never mutated by kiosk logic.
type Menu struct {
	Categories []Category `json:"categories"`
	Items      []MenuItem `json:"items"`
}

// Item looks up an item by id.
func (m *Menu) Item(id string) (MenuItem, bool) {
	for _, it := range m.Items {
		if it.ID == id {
			return it, true
		}
	}
	return MenuItem{}, false
}

// Category looks up a category by id.
func (m *Menu) Category(id string) (Category, bool) {
	for _, c := range m.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// ItemsInCategory returns the items belonging to the category in sort order.
func (m *Menu) ItemsInCategory(categoryID string) []MenuItem {
	var out []MenuItem
	for _, it := range m.Items {
		if it.CategoryID == categoryID {
			out = append(out, it)
		}
	}
	return out
}

// FindItemByNameContains returns the first item whose name contains any of the
// given substrings, in menu order. Used for bundled set companion lookup.
func (m *Menu) FindItemByNameContains(substrings ...string) (MenuItem, bool) {
	for _, it := range m.Items {
		for _, sub := range substrings {
			if sub != "" && strings.Contains(it.Name, sub) {
				return it, true
			}
		}
	}
	return MenuItem{}, false
}
