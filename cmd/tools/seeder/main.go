package main

import (
	"context"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// Seeds a demo tenant with a menu that exercises the whole ordering flow:
// modifier groups, a combo item, a weekday-restricted item and a staff login.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close(ctx)

	tenantID := envOr("SEED_TENANT", "demo")
	_, err = conn.Exec(ctx, `
		INSERT INTO tenants (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, tenantID, "Demo Diner")
	if err != nil {
		log.Fatalf("Failed to seed tenant: %v", err)
	}
	log.Printf("Using tenant: %s", tenantID)

	seedStaff(ctx, conn, tenantID)
	seedMenu(ctx, conn, tenantID)

	log.Println("Seeding completed successfully!")
}

func seedStaff(ctx context.Context, conn *pgx.Conn, tenantID string) {
	password := envOr("SEED_ADMIN_PASSWORD", "change-me-now")
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	_, err = conn.Exec(ctx, `
		INSERT INTO staff (tenant_id, email, password_hash, role)
		VALUES ($1, $2, $3, 'manager')
		ON CONFLICT (tenant_id, email) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, tenantID, "manager@demo.local", hash)
	if err != nil {
		log.Fatalf("Failed to seed staff: %v", err)
	}
	log.Println("Seeded staff: manager@demo.local")
}

func seedMenu(ctx context.Context, conn *pgx.Conn, tenantID string) {
	categories := map[string]string{}
	for i, name := range []string{"Burgers", "Sides", "Drinks", "Special"} {
		id := uuid.NewString()
		err := conn.QueryRow(ctx, `
			INSERT INTO categories (id, tenant_id, name, sort_order)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, name) DO UPDATE SET sort_order = EXCLUDED.sort_order
			RETURNING id
		`, id, tenantID, name, i).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed category %s: %v", name, err)
		}
		categories[name] = id
	}
	log.Printf("Seeded %d categories", len(categories))

	type seedItem struct {
		Category    string
		Name        string
		Price       int64
		Description string
	}
	items := []seedItem{
		{"Burgers", "Classic Burger", 1200, "quarter pound, lettuce, tomato"},
		{"Burgers", "Double Cheeseburger", 1650, "two patties, american cheese"},
		{"Sides", "French Fries", 450, "crinkle cut"},
		{"Sides", "Onion Rings", 500, "beer battered"},
		{"Drinks", "Soft Drink", 300, "fountain, free refills"},
		{"Drinks", "Milkshake", 650, "hand spun"},
		{"Special", "Burger Combo", 1700, "classic burger with fries and a drink"},
		{"Burgers", "Friday Fish Sandwich", 1400, "beer battered cod, fridays only"},
	}
	itemIDs := map[string]string{}
	for i, it := range items {
		id := uuid.NewString()
		_, err := conn.Exec(ctx, `
			INSERT INTO items (id, tenant_id, category_id, name, price, description, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, tenantID, categories[it.Category], it.Name, it.Price, it.Description, i)
		if err != nil {
			log.Fatalf("Failed to seed item %s: %v", it.Name, err)
		}
		itemIDs[it.Name] = id
	}
	log.Printf("Seeded %d items", len(items))

	sizeGroup := uuid.NewString()
	_, err := conn.Exec(ctx, `
		INSERT INTO modifier_groups (id, tenant_id, name, is_required, min_selection, max_selection)
		VALUES ($1, $2, 'Size', TRUE, 1, 1)
	`, sizeGroup, tenantID)
	if err != nil {
		log.Fatalf("Failed to seed size group: %v", err)
	}
	for i, opt := range []struct {
		Name  string
		Price int64
	}{{"Small", 0}, {"Medium", 100}, {"Large", 200}} {
		_, err := conn.Exec(ctx, `
			INSERT INTO modifier_options (id, group_id, name, price, sort_order)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), sizeGroup, opt.Name, opt.Price, i)
		if err != nil {
			log.Fatalf("Failed to seed size option %s: %v", opt.Name, err)
		}
	}

	toppingsGroup := uuid.NewString()
	_, err = conn.Exec(ctx, `
		INSERT INTO modifier_groups (id, tenant_id, name, is_required, min_selection, max_selection)
		VALUES ($1, $2, 'Toppings', FALSE, 0, 3)
	`, toppingsGroup, tenantID)
	if err != nil {
		log.Fatalf("Failed to seed toppings group: %v", err)
	}
	for i, opt := range []struct {
		Name  string
		Price int64
	}{{"Bacon", 150}, {"Extra Cheese", 100}, {"Grilled Onions", 50}, {"Pickles", 0}} {
		_, err := conn.Exec(ctx, `
			INSERT INTO modifier_options (id, group_id, name, price, sort_order)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), toppingsGroup, opt.Name, opt.Price, i)
		if err != nil {
			log.Fatalf("Failed to seed topping %s: %v", opt.Name, err)
		}
	}

	attach := []struct {
		Item  string
		Group string
	}{
		{"Classic Burger", toppingsGroup},
		{"Double Cheeseburger", toppingsGroup},
		{"Soft Drink", sizeGroup},
		{"French Fries", sizeGroup},
		{"Burger Combo", toppingsGroup},
	}
	for _, a := range attach {
		_, err := conn.Exec(ctx, `
			INSERT INTO item_modifier_groups (item_id, group_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, itemIDs[a.Item], a.Group)
		if err != nil {
			log.Fatalf("Failed to attach group to %s: %v", a.Item, err)
		}
	}
	log.Println("Seeded modifier groups and attachments")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
