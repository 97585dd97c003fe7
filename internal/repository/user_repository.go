package repository

import (
	"context"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type userRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool, logger zerolog.Logger) UserRepository {
	return &userRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "user").Logger(),
	}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := queryOne[model.User](ctx, r.pool,
		`SELECT id, email, name, role, created_at FROM users WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to query user")
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}
