package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const productColumns = `id, code, title, price, stock, active, category, thumbnails, created_at, updated_at`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// GetAll retrieves products with pagination support.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		ORDER BY title, id
		LIMIT $1 OFFSET $2`

	products, err := queryAll[model.Product](ctx, r.pool, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	return products, nil
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := queryOne[model.Product](ctx, r.pool, query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	if p == nil {
		r.logger.Debug().Str("product_id", id.String()).Msg("product not found")
	}

	return p, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	return getProductsByIDs(ctx, r.pool, ids)
}

func getProductsByIDs(ctx context.Context, q Querier, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY id`

	products, err := queryAll[model.Product](ctx, q, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by IDs: %w", err)
	}

	return products, nil
}

// LockByID reads a product with SELECT ... FOR UPDATE.
func (r *productRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	p, err := queryOne[model.Product](ctx, tx, query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to lock product")
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return p, nil
}

// AdjustStock applies delta with a guarded UPDATE so concurrent writers can never drive stock negative.
func (r *productRepository) AdjustStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) (*model.Product, error) {
	query := `UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING ` + productColumns

	p, err := queryOne[model.Product](ctx, tx, query, id, delta)
	if err != nil {
		r.logger.Error().Err(err).
			Str("product_id", id.String()).
			Int("delta", delta).
			Msg("failed to adjust stock")
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}
	if p != nil {
		r.logger.Debug().
			Str("product_id", id.String()).
			Int("delta", delta).
			Int("stock", p.Stock).
			Msg("stock adjusted")
		return p, nil
	}

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewNotFoundError("product", id)
		}
		return nil, fmt.Errorf("failed to read stock: %w", err)
	}

	bizErr := model.NewBusinessError(model.ErrCodeInsufficientStock,
		fmt.Sprintf("insufficient stock for product %s", id))
	bizErr.Details = map[string]int{"available": stock, "requested": -delta}

	r.logger.Warn().
		Str("product_id", id.String()).
		Int("delta", delta).
		Int("stock", stock).
		Msg("stock adjustment rejected")

	return nil, bizErr
}
