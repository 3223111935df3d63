package cart

import (
	"errors"
	"fmt"

	"github.com/orderhub-dev/backend-kiosk/internal/catalog"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// ErrUnknownGroup is returned when a toggle targets a group the item lacks.
var ErrUnknownGroup = errors.New("cart: modifier group not on item")

// ErrUnknownOption is returned when a toggle targets an option the group lacks.
var ErrUnknownOption = errors.New("cart: option not in group")

// RequiredGroupError reports a required group left under its minimum.
type RequiredGroupError struct {
	GroupName string
	Min       int
	Selected  int
}

func (e *RequiredGroupError) Error() string {
	return fmt.Sprintf("cart: group %q requires %d selection(s), have %d", e.GroupName, e.Min, e.Selected)
}

// Selection tracks the options picked while an item is being configured.
// Toggling an already-selected option deselects it; exclusive groups
// (MaxSelection of 1) swap the previous pick instead.
type Selection struct {
	item   catalog.MenuItem
	chosen map[string][]string
}

// NewSelection starts an empty selection for the item.
func NewSelection(item catalog.MenuItem) *Selection {
	return &Selection{item: item, chosen: make(map[string][]string)}
}

// Toggle flips the option's selected state within its group. A toggle past a
// bounded group's cap is refused silently: the selection stays as it was and
// no error reaches the caller.
func (s *Selection) Toggle(groupID, optionID string) error {
	group, ok := s.item.Group(groupID)
	if !ok {
		return ErrUnknownGroup
	}
	if _, ok := group.Option(optionID); !ok {
		return ErrUnknownOption
	}
	current := s.chosen[groupID]
	for i, id := range current {
		if id == optionID {
			s.chosen[groupID] = append(current[:i:i], current[i+1:]...)
			return nil
		}
	}
	if group.MaxSelection == 1 {
		s.chosen[groupID] = []string{optionID}
		return nil
	}
	if group.MaxSelection > 1 && len(current) >= group.MaxSelection {
		return nil
	}
	s.chosen[groupID] = append(current, optionID)
	return nil
}

// Selected reports whether the option is currently picked.
func (s *Selection) Selected(groupID, optionID string) bool {
	for _, id := range s.chosen[groupID] {
		if id == optionID {
			return true
		}
	}
	return false
}

// Validate checks every required group against its minimum. Groups that are
// not required never block, whatever their minimum says.
func (s *Selection) Validate() error {
	for _, group := range s.item.Groups {
		if !group.IsRequired {
			continue
		}
		min := group.MinSelection
		if min < 1 {
			min = 1
		}
		if got := len(s.chosen[group.ID]); got < min {
			return &RequiredGroupError{GroupName: group.Name, Min: min, Selected: got}
		}
	}
	return nil
}

// Options flattens the selection into chosen options in menu group order,
// preserving pick order within a group.
func (s *Selection) Options() []ChosenOption {
	var out []ChosenOption
	for _, group := range s.item.Groups {
		for _, optID := range s.chosen[group.ID] {
			opt, ok := group.Option(optID)
			if !ok {
				continue
			}
			out = append(out, ChosenOption{
				GroupID:   group.ID,
				GroupName: group.Name,
				OptionID:  opt.ID,
				Name:      opt.Name,
				Price:     opt.Price,
			})
		}
	}
	return out
}

// UnitPrice is the item's base price plus all selected option deltas.
func (s *Selection) UnitPrice() pricing.Money {
	total := s.item.Price
	for _, opt := range s.Options() {
		total += opt.Price
	}
	return total
}
