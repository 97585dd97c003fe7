package repository

import (
	"context"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// cartRepository implements the CartRepository interface using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// GetByUserID retrieves the user's cart through q, resolving products when opts asks for them.
// A nil q reads from the pool.
func (r *cartRepository) GetByUserID(ctx context.Context, q Querier, userID uuid.UUID, opts model.CartQueryOptions) (*model.Cart, error) {
	if q == nil {
		q = r.pool
	}

	cart, err := r.load(ctx, q, userID, false)
	if err != nil || cart == nil {
		return cart, err
	}

	if opts.IncludeProducts {
		if err := r.resolveProducts(ctx, q, cart); err != nil {
			return nil, err
		}
	}

	return cart, nil
}

// LockByUserID reads the cart with SELECT ... FOR UPDATE.
func (r *cartRepository) LockByUserID(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*model.Cart, error) {
	return r.load(ctx, tx, userID, true)
}

// RemoveLines deletes the ordered products from the cart, leaving every other line untouched.
func (r *cartRepository) RemoveLines(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productIDs []uuid.UUID) (*model.Cart, error) {
	if len(productIDs) > 0 {
		tag, err := tx.Exec(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = ANY($2)`,
			cartID, productIDs,
		)
		if err != nil {
			r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to remove cart lines")
			return nil, fmt.Errorf("failed to remove cart lines: %w", err)
		}

		r.logger.Debug().
			Str("cart_id", cartID.String()).
			Int64("removed", tag.RowsAffected()).
			Msg("cart lines removed")
	}

	cart, err := queryOne[model.Cart](ctx, tx,
		`UPDATE carts SET updated_at = NOW() WHERE id = $1 RETURNING id, user_id, updated_at`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to touch cart: %w", err)
	}
	if cart == nil {
		return nil, model.NewNotFoundError("cart", cartID)
	}

	if cart.Items, err = r.items(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *cartRepository) load(ctx context.Context, q Querier, userID uuid.UUID, lock bool) (*model.Cart, error) {
	query := `SELECT id, user_id, updated_at FROM carts WHERE user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	cart, err := queryOne[model.Cart](ctx, q, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	if cart == nil {
		r.logger.Debug().Str("user_id", userID.String()).Msg("cart not found")
		return nil, nil
	}

	if cart.Items, err = r.items(ctx, q, cart.ID); err != nil {
		return nil, err
	}

	return cart, nil
}

// items returns the cart lines ordered by product id, which is also the product lock order.
func (r *cartRepository) items(ctx context.Context, q Querier, cartID uuid.UUID) ([]model.CartItem, error) {
	items, err := queryAll[model.CartItem](ctx, q,
		`SELECT product_id, quantity, added_at FROM cart_items WHERE cart_id = $1 ORDER BY product_id`,
		cartID,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to query cart items")
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}

	return items, nil
}

func (r *cartRepository) resolveProducts(ctx context.Context, q Querier, cart *model.Cart) error {
	ids := make([]uuid.UUID, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}

	products, err := getProductsByIDs(ctx, q, ids)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to resolve cart products")
		return err
	}

	byID := make(map[uuid.UUID]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for i := range cart.Items {
		cart.Items[i].Product = byID[cart.Items[i].ProductID]
	}

	return nil
}
