package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// ErrNotFound indicates the requested catalog row does not exist for the tenant.
var ErrNotFound = errors.New("catalog: not found")

// Store provides tenant-scoped catalog persistence on Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// LoadMenu assembles the full menu snapshot for a tenant: categories, items,
// and each item's modifier groups with ordered options.
func (s *Store) LoadMenu(ctx context.Context, tenantID string) (*Menu, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("catalog store not configured")
	}
	menu := &Menu{}

	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, sort_order FROM categories WHERE tenant_id = $1 ORDER BY sort_order, name`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category: %w", err)
		}
		menu.Categories = append(menu.Categories, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	rows, err = s.Pool.Query(ctx,
		`SELECT id, name, price, COALESCE(description, ''), COALESCE(image_url, ''),
		        COALESCE(category_id::text, ''), is_sold_out, sort_order
		 FROM items WHERE tenant_id = $1 ORDER BY sort_order, name`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var it MenuItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Description, &it.ImageURL,
			&it.CategoryID, &it.SoldOut, &it.SortOrder); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		index[it.ID] = len(menu.Items)
		menu.Items = append(menu.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	rows, err = s.Pool.Query(ctx,
		`SELECT img.item_id, g.id, g.name, g.is_required, g.min_selection, g.max_selection,
		        o.id, o.name, o.price, o.sort_order
		 FROM item_modifier_groups img
		 JOIN modifier_groups g ON g.id = img.group_id
		 LEFT JOIN modifier_options o ON o.group_id = g.id
		 WHERE g.tenant_id = $1
		 ORDER BY img.item_id, g.name, o.sort_order, o.price, o.name`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("load modifier groups: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			itemID    string
			group     ModifierGroup
			optID     *string
			optName   *string
			optPrice  *pricing.Money
			optSort   *int
		)
		if err := rows.Scan(&itemID, &group.ID, &group.Name, &group.IsRequired,
			&group.MinSelection, &group.MaxSelection,
			&optID, &optName, &optPrice, &optSort); err != nil {
			return nil, fmt.Errorf("scan modifier group: %w", err)
		}
		idx, ok := index[itemID]
		if !ok {
			continue
		}
		item := &menu.Items[idx]
		var target *ModifierGroup
		for i := range item.Groups {
			if item.Groups[i].ID == group.ID {
				target = &item.Groups[i]
				break
			}
		}
		if target == nil {
			normalizeGroup(&group)
			item.Groups = append(item.Groups, group)
			target = &item.Groups[len(item.Groups)-1]
		}
		if optID != nil {
			target.Options = append(target.Options, ModifierOption{
				ID:        *optID,
				Name:      derefString(optName),
				Price:     derefMoney(optPrice),
				SortOrder: derefInt(optSort),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load modifier groups: %w", err)
	}
	return menu, nil
}

// normalizeGroup repairs rows that predate the required-implies-minimum check
// on the admin write path.
func normalizeGroup(g *ModifierGroup) {
	if g.IsRequired && g.MinSelection < 1 {
		g.MinSelection = 1
	}
	if g.MinSelection < 0 {
		g.MinSelection = 0
	}
	if g.MaxSelection < 0 {
		g.MaxSelection = 0
	}
}

// CategoryParams carries admin-editable category fields.
type CategoryParams struct {
	Name      string
	SortOrder int
}

// CreateCategory inserts a category and returns it.
func (s *Store) CreateCategory(ctx context.Context, tenantID string, p CategoryParams) (Category, error) {
	c := Category{ID: uuid.NewString(), Name: p.Name, SortOrder: p.SortOrder}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO categories (id, tenant_id, name, sort_order) VALUES ($1, $2, $3, $4)`,
		c.ID, tenantID, c.Name, c.SortOrder)
	if err != nil {
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// UpdateCategory updates a category's editable fields.
func (s *Store) UpdateCategory(ctx context.Context, tenantID, id string, p CategoryParams) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE categories SET name = $3, sort_order = $4 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, p.Name, p.SortOrder)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory removes a category. Items in the category are detached by the
// schema's ON DELETE SET NULL and disappear from the kiosk until reassigned.
func (s *Store) DeleteCategory(ctx context.Context, tenantID, id string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM categories WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemParams carries admin-editable menu item fields.
type ItemParams struct {
	Name        string
	Price       pricing.Money
	Description string
	ImageURL    string
	CategoryID  string
	SoldOut     bool
	SortOrder   int
}

// CreateItem inserts a menu item and returns it.
func (s *Store) CreateItem(ctx context.Context, tenantID string, p ItemParams) (MenuItem, error) {
	it := MenuItem{
		ID:          uuid.NewString(),
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
		SoldOut:     p.SoldOut,
		SortOrder:   p.SortOrder,
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO items (id, tenant_id, category_id, name, price, description, image_url, is_sold_out, sort_order)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)`,
		it.ID, tenantID, it.CategoryID, it.Name, it.Price, it.Description, it.ImageURL, it.SoldOut, it.SortOrder)
	if err != nil {
		return MenuItem{}, fmt.Errorf("create item: %w", err)
	}
	return it, nil
}

// UpdateItem updates a menu item's editable fields.
func (s *Store) UpdateItem(ctx context.Context, tenantID, id string, p ItemParams) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE items SET category_id = $3, name = $4, price = $5,
		        description = NULLIF($6, ''), image_url = NULLIF($7, ''),
		        is_sold_out = $8, sort_order = $9
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, p.CategoryID, p.Name, p.Price, p.Description, p.ImageURL, p.SoldOut, p.SortOrder)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSoldOut flips the sold-out flag without touching other fields.
func (s *Store) SetSoldOut(ctx context.Context, tenantID, id string, soldOut bool) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE items SET is_sold_out = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, soldOut)
	if err != nil {
		return fmt.Errorf("set sold out: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes a menu item and its group attachments.
func (s *Store) DeleteItem(ctx context.Context, tenantID, id string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM items WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GroupParams carries admin-editable modifier group fields.
type GroupParams struct {
	Name         string
	IsRequired   bool
	MinSelection int
	MaxSelection int
}

// CreateGroup inserts a modifier group. Required groups must declare a minimum
// of at least one selection.
func (s *Store) CreateGroup(ctx context.Context, tenantID string, p GroupParams) (ModifierGroup, error) {
	if p.IsRequired && p.MinSelection < 1 {
		return ModifierGroup{}, fmt.Errorf("catalog: required group %q needs min_selection >= 1", p.Name)
	}
	g := ModifierGroup{
		ID:           uuid.NewString(),
		Name:         p.Name,
		IsRequired:   p.IsRequired,
		MinSelection: p.MinSelection,
		MaxSelection: p.MaxSelection,
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO modifier_groups (id, tenant_id, name, is_required, min_selection, max_selection)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, tenantID, g.Name, g.IsRequired, g.MinSelection, g.MaxSelection)
	if err != nil {
		return ModifierGroup{}, fmt.Errorf("create modifier group: %w", err)
	}
	return g, nil
}

// UpdateGroup updates a modifier group's constraint fields.
func (s *Store) UpdateGroup(ctx context.Context, tenantID, id string, p GroupParams) error {
	if p.IsRequired && p.MinSelection < 1 {
		return fmt.Errorf("catalog: required group %q needs min_selection >= 1", p.Name)
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE modifier_groups SET name = $3, is_required = $4, min_selection = $5, max_selection = $6
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, p.Name, p.IsRequired, p.MinSelection, p.MaxSelection)
	if err != nil {
		return fmt.Errorf("update modifier group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroup removes a modifier group, its options, and item attachments.
func (s *Store) DeleteGroup(ctx context.Context, tenantID, id string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM modifier_groups WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete modifier group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// OptionParams carries admin-editable modifier option fields.
type OptionParams struct {
	Name      string
	Price     pricing.Money
	SortOrder int
}

// CreateOption inserts an option into a group owned by the tenant.
func (s *Store) CreateOption(ctx context.Context, tenantID, groupID string, p OptionParams) (ModifierOption, error) {
	if p.Price < 0 {
		return ModifierOption{}, errors.New("catalog: option price must be non-negative")
	}
	opt := ModifierOption{ID: uuid.NewString(), Name: p.Name, Price: p.Price, SortOrder: p.SortOrder}
	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO modifier_options (id, group_id, name, price, sort_order)
		 SELECT $1, g.id, $3, $4, $5 FROM modifier_groups g WHERE g.id = $2 AND g.tenant_id = $6`,
		opt.ID, groupID, opt.Name, opt.Price, opt.SortOrder, tenantID)
	if err != nil {
		return ModifierOption{}, fmt.Errorf("create option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ModifierOption{}, ErrNotFound
	}
	return opt, nil
}

// UpdateOption updates an option within a tenant-owned group.
func (s *Store) UpdateOption(ctx context.Context, tenantID, id string, p OptionParams) error {
	if p.Price < 0 {
		return errors.New("catalog: option price must be non-negative")
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE modifier_options o SET name = $3, price = $4, sort_order = $5
		 FROM modifier_groups g
		 WHERE o.id = $2 AND o.group_id = g.id AND g.tenant_id = $1`,
		tenantID, id, p.Name, p.Price, p.SortOrder)
	if err != nil {
		return fmt.Errorf("update option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOption removes an option from a tenant-owned group.
func (s *Store) DeleteOption(ctx context.Context, tenantID, id string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM modifier_options o USING modifier_groups g
		 WHERE o.id = $2 AND o.group_id = g.id AND g.tenant_id = $1`,
		tenantID, id)
	if err != nil {
		return fmt.Errorf("delete option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachGroup links a modifier group to an item. Attaching twice is a no-op.
func (s *Store) AttachGroup(ctx context.Context, tenantID, itemID, groupID string) error {
	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO item_modifier_groups (item_id, group_id)
		 SELECT i.id, g.id FROM items i, modifier_groups g
		 WHERE i.id = $2 AND i.tenant_id = $1 AND g.id = $3 AND g.tenant_id = $1
		 ON CONFLICT DO NOTHING`,
		tenantID, itemID, groupID)
	if err != nil {
		return fmt.Errorf("attach group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing rows or an existing link; distinguish for the caller.
		var exists bool
		err := s.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM item_modifier_groups WHERE item_id = $1 AND group_id = $2)`,
			itemID, groupID).Scan(&exists)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("attach group: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

// DetachGroup removes a group link from an item.
func (s *Store) DetachGroup(ctx context.Context, tenantID, itemID, groupID string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM item_modifier_groups img USING items i
		 WHERE img.item_id = $2 AND img.group_id = $3 AND i.id = img.item_id AND i.tenant_id = $1`,
		tenantID, itemID, groupID)
	if err != nil {
		return fmt.Errorf("detach group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefMoney(v *pricing.Money) pricing.Money {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
