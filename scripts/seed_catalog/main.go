// Command seed_catalog loads a demo catalogue, two accounts and a filled cart into the
// configured database, and prints bearer tokens for trying the API by hand.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type product struct {
	code     string
	title    string
	price    int64
	stock    int
	category string
}

var catalog = []product{
	{"KB-001", "Mechanical Keyboard", 45000, 25, "peripherals"},
	{"MS-002", "Wireless Mouse", 12000, 40, "peripherals"},
	{"MN-003", "27in Monitor", 189000, 8, "displays"},
	{"HS-004", "Noise Cancelling Headset", 78000, 12, "audio"},
	{"CB-005", "USB-C Cable", 2500, 200, "accessories"},
	{"LP-006", "Laptop Stand", 9900, 0, "accessories"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var admin, shopper uuid.UUID
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		ids, err := seedProducts(ctx, tx)
		if err != nil {
			return err
		}
		if admin, err = seedUser(ctx, tx, "admin@example.com", "Store Admin", model.RoleAdmin); err != nil {
			return err
		}
		if shopper, err = seedUser(ctx, tx, "shopper@example.com", "Demo Shopper", model.RoleUser); err != nil {
			return err
		}
		return seedCart(ctx, tx, shopper, map[uuid.UUID]int{ids["KB-001"]: 1, ids["MS-002"]: 2, ids["LP-006"]: 1})
	})
	if err != nil {
		return err
	}

	logger.Info().Int("products", len(catalog)).Msg("catalog seeded")

	return printTokens(cfg.Auth.JWTSecret, admin, shopper, logger)
}

func seedProducts(ctx context.Context, tx pgx.Tx) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(catalog))
	for _, p := range catalog {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO products (code, title, price, stock, category, thumbnails)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (code) DO UPDATE
			SET title = EXCLUDED.title, price = EXCLUDED.price, stock = EXCLUDED.stock,
				category = EXCLUDED.category, active = TRUE, updated_at = NOW()
			RETURNING id
		`, p.code, p.title, decimal.NewFromInt(p.price), p.stock, p.category,
			[]string{"https://cdn.example.com/" + p.code + ".jpg"},
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to seed product %s: %w", p.code, err)
		}
		ids[p.code] = id
	}
	return ids, nil
}

func seedUser(ctx context.Context, tx pgx.Tx, email, name string, role model.Role) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO users (email, name, role) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
		RETURNING id
	`, email, name, string(role)).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed user %s: %w", email, err)
	}
	return id, nil
}

func seedCart(ctx context.Context, tx pgx.Tx, userID uuid.UUID, lines map[uuid.UUID]int) error {
	var cartID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, userID).Scan(&cartID)
	if err != nil {
		return fmt.Errorf("failed to seed cart: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	batch := &pgx.Batch{}
	for productID, qty := range lines {
		batch.Queue(`INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)`, cartID, productID, qty)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed cart lines: %w", err)
	}
	return nil
}

func printTokens(secret string, admin, shopper uuid.UUID, logger zerolog.Logger) error {
	if secret == "" {
		logger.Warn().Msg("JWT_SECRET is not set, skipping token generation")
		return nil
	}

	for _, account := range []struct {
		name string
		id   uuid.UUID
		role model.Role
	}{
		{"admin", admin, model.RoleAdmin},
		{"shopper", shopper, model.RoleUser},
	} {
		token, err := middleware.NewToken(secret, account.id, account.role, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("failed to sign %s token: %w", account.name, err)
		}
		fmt.Printf("%s (%s): Bearer %s\n", account.name, account.id, token)
	}
	return nil
}
