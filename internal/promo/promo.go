// Package promo resolves promotional codes against gzip-compressed catalogue files.
package promo

import (
	"context"
)

// Resolver turns a promo code into a discount percentage.
type Resolver interface {
	// Resolve returns the discount percent for code.
	// A code is accepted only when it is 6 to 20 characters long and appears in at least
	// the configured number of catalogues. When catalogues disagree the smallest percent wins.
	Resolve(ctx context.Context, code string) (int, error)

	// Close releases the loaded catalogues.
	Close() error
}

// Catalog maps normalised promo codes to their discount percent.
type Catalog interface {
	// Lookup returns the percent for code and whether the code is present.
	Lookup(code string) (int, bool)

	// Size returns the number of codes in the catalogue.
	Size() int
}

// Loader reads one catalogue file.
type Loader interface {
	// Load reads a gzipped catalogue of CODE,PERCENT lines.
	Load(ctx context.Context, path string) (Catalog, error)
}
