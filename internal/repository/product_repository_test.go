package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_GetAll(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProductRepository(pool, zerolog.Nop())

	for i := 1; i <= 5; i++ {
		seedProduct(t, pool, fmt.Sprintf("P%03d", i), int64(i)*10000, i)
	}

	tests := []struct {
		name     string
		limit    int
		offset   int
		expected int
	}{
		{name: "Get all products", limit: 10, offset: 0, expected: 5},
		{name: "Get first page", limit: 2, offset: 0, expected: 2},
		{name: "Get second page", limit: 2, offset: 2, expected: 2},
		{name: "Get last page", limit: 2, offset: 4, expected: 1},
		{name: "Offset beyond results", limit: 2, offset: 10, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := repo.GetAll(context.Background(), tt.limit, tt.offset)

			require.NoError(t, err)
			assert.Len(t, products, tt.expected)
		})
	}

	t.Run("Ordered by title", func(t *testing.T) {
		products, err := repo.GetAll(context.Background(), 10, 0)
		require.NoError(t, err)
		require.Len(t, products, 5)

		for i := 1; i < len(products); i++ {
			assert.LessOrEqual(t, products[i-1].Title, products[i].Title)
		}
		assert.Equal(t, []string{"https://cdn.example.com/P001.jpg"}, products[0].Thumbnails)
	})
}

func TestProductRepository_GetByID(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProductRepository(pool, zerolog.Nop())

	id := seedProduct(t, pool, "P001", 10000, 5)

	tests := []struct {
		name        string
		productID   uuid.UUID
		expectFound bool
	}{
		{name: "Existing product", productID: id, expectFound: true},
		{name: "Missing product", productID: uuid.New(), expectFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			product, err := repo.GetByID(context.Background(), tt.productID)

			require.NoError(t, err)
			if !tt.expectFound {
				assert.Nil(t, product)
				return
			}
			require.NotNil(t, product)
			assert.Equal(t, "P001", product.Code)
			assert.True(t, decimal.NewFromInt(10000).Equal(product.Price))
			assert.Equal(t, 5, product.Stock)
			assert.True(t, product.Active)
		})
	}
}

func TestProductRepository_GetByIDs(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProductRepository(pool, zerolog.Nop())

	a := seedProduct(t, pool, "P001", 10000, 5)
	b := seedProduct(t, pool, "P002", 20000, 5)

	tests := []struct {
		name     string
		ids      []uuid.UUID
		expected int
	}{
		{name: "All found", ids: []uuid.UUID{a, b}, expected: 2},
		{name: "Unknown IDs are skipped", ids: []uuid.UUID{a, uuid.New()}, expected: 1},
		{name: "Empty input", ids: nil, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := repo.GetByIDs(context.Background(), tt.ids)

			require.NoError(t, err)
			assert.Len(t, products, tt.expected)
		})
	}
}

func TestProductRepository_AdjustStock(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProductRepository(pool, zerolog.Nop())
	runner := NewTxRunner(pool, 0, zerolog.Nop())
	ctx := context.Background()

	id := seedProduct(t, pool, "P001", 10000, 5)

	stockOf := func(t *testing.T) int {
		p, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		return p.Stock
	}

	t.Run("Decrement within stock", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			p, err := repo.AdjustStock(ctx, tx, id, -2)
			if err != nil {
				return err
			}
			assert.Equal(t, 3, p.Stock)
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, stockOf(t))
	})

	t.Run("Decrement beyond stock", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			_, err := repo.AdjustStock(ctx, tx, id, -10)
			return err
		})

		var bizErr *model.BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, model.ErrCodeInsufficientStock, bizErr.Code)
		assert.Equal(t, map[string]int{"available": 3, "requested": 10}, bizErr.Details)
		assert.Equal(t, 3, stockOf(t))
	})

	t.Run("Restore", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			_, err := repo.AdjustStock(ctx, tx, id, 2)
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, 5, stockOf(t))
	})

	t.Run("Unknown product", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			_, err := repo.AdjustStock(ctx, tx, uuid.New(), -1)
			return err
		})

		var notFound *model.NotFoundError
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("Lock reads current row", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			p, err := repo.LockByID(ctx, tx, id)
			if err != nil {
				return err
			}
			require.NotNil(t, p)
			assert.Equal(t, 5, p.Stock)

			missing, err := repo.LockByID(ctx, tx, uuid.New())
			assert.Nil(t, missing)
			return err
		})

		require.NoError(t, err)
	})
}

func TestProductRepository_ErrorPaths(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProductRepository(pool, zerolog.Nop())

	id := seedProduct(t, pool, "P001", 10000, 5)

	// Close the pool to simulate database errors
	pool.Close()

	t.Run("GetAll with closed pool", func(t *testing.T) {
		products, err := repo.GetAll(context.Background(), 10, 0)

		require.Error(t, err)
		assert.Nil(t, products)
	})

	t.Run("GetByID with closed pool", func(t *testing.T) {
		product, err := repo.GetByID(context.Background(), id)

		require.Error(t, err)
		assert.Nil(t, product)
	})

	t.Run("GetByIDs with closed pool", func(t *testing.T) {
		products, err := repo.GetByIDs(context.Background(), []uuid.UUID{id})

		require.Error(t, err)
		assert.Nil(t, products)
	})
}
