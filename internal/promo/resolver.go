package promo

import (
	"context"
	"fmt"
	"unicode/utf8"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	MinCodeLength = 6
	MaxCodeLength = 20
)

// ResolverConfig holds configuration for the promo resolver.
type ResolverConfig struct {
	// Files is the list of catalogue paths to load.
	Files []string

	// MinMatchCount is the minimum number of catalogues a code must appear in.
	MinMatchCount int
}

// resolver implements Resolver over catalogues loaded once at start-up.
// Catalogues are read-only after construction.
type resolver struct {
	catalogs      []Catalog
	minMatchCount int
	logger        zerolog.Logger
}

// NewResolver loads every configured catalogue concurrently and fails if any of them cannot be read.
func NewResolver(ctx context.Context, cfg ResolverConfig, loader Loader, logger zerolog.Logger) (Resolver, error) {
	logger = logger.With().Str("component", "promo-resolver").Logger()

	if cfg.MinMatchCount < 1 {
		cfg.MinMatchCount = 1
	}

	logger.Info().
		Int("file_count", len(cfg.Files)).
		Int("min_match_count", cfg.MinMatchCount).
		Msg("initialising promo resolver")

	catalogs := make([]Catalog, len(cfg.Files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range cfg.Files {
		i, path := i, path
		g.Go(func() error {
			catalog, err := loader.Load(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to load promo catalogue %s: %w", path, err)
			}
			catalogs[i] = catalog
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("failed to initialise promo resolver")
		return nil, err
	}

	total := 0
	for _, c := range catalogs {
		total += c.Size()
	}
	logger.Info().Int("total_codes", total).Msg("promo resolver initialised")

	return &resolver{
		catalogs:      catalogs,
		minMatchCount: cfg.MinMatchCount,
		logger:        logger,
	}, nil
}

// Resolve returns the smallest percent among the catalogues containing code.
func (r *resolver) Resolve(ctx context.Context, code string) (int, error) {
	code = Normalize(code)

	if n := utf8.RuneCountInString(code); n < MinCodeLength || n > MaxCodeLength {
		r.logger.Debug().Str("promo_code", code).Int("length", n).Msg("promo code length invalid")
		return 0, invalidCode(code, fmt.Sprintf("promo code must be between %d and %d characters", MinCodeLength, MaxCodeLength))
	}

	matches, percent := 0, 0
	for _, c := range r.catalogs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p, ok := c.Lookup(code)
		if !ok {
			continue
		}
		if matches == 0 || p < percent {
			percent = p
		}
		matches++
	}

	if matches < r.minMatchCount {
		r.logger.Debug().
			Str("promo_code", code).
			Int("match_count", matches).
			Msg("promo code not found in sufficient catalogues")
		return 0, invalidCode(code, "promo code is not valid")
	}

	r.logger.Debug().
		Str("promo_code", code).
		Int("match_count", matches).
		Int("percent", percent).
		Msg("promo code resolved")

	return percent, nil
}

// Close drops the catalogues so their memory can be reclaimed.
func (r *resolver) Close() error {
	r.catalogs = nil
	r.logger.Info().Msg("promo resolver closed")
	return nil
}

func invalidCode(code, message string) *model.BusinessError {
	err := model.NewBusinessError(model.ErrCodeInvalidPromoCode, message)
	err.Details = map[string]string{"promoCode": code}
	return err
}
