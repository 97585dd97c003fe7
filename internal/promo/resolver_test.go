package promo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, minMatch int, catalogs ...Catalog) Resolver {
	t.Helper()

	files := make([]string, len(catalogs))
	byPath := make(map[string]Catalog, len(catalogs))
	for i, c := range catalogs {
		files[i] = string(rune('a'+i)) + ".gz"
		byPath[files[i]] = c
	}

	loader := &mockLoader{loadFunc: func(_ context.Context, path string) (Catalog, error) {
		return byPath[path], nil
	}}

	r, err := NewResolver(context.Background(), ResolverConfig{Files: files, MinMatchCount: minMatch}, loader, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver(t, 2,
		catalogOf(map[string]int{"BOTHFILES": 15, "ONLYFIRST": 50, "THREEWAY1": 30}),
		catalogOf(map[string]int{"BOTHFILES": 10, "THREEWAY1": 20}),
		catalogOf(map[string]int{"THREEWAY1": 25, "SHORT": 5, "ABCDEFGHIJKLMNOPQRSTU": 5}),
	)

	tests := []struct {
		name            string
		code            string
		expectedPercent int
		expectError     bool
	}{
		{name: "Smallest percent wins across two catalogues", code: "BOTHFILES", expectedPercent: 10},
		{name: "Smallest percent wins across three catalogues", code: "THREEWAY1", expectedPercent: 20},
		{name: "Case and whitespace insensitive", code: "  bothfiles ", expectedPercent: 10},
		{name: "Only one catalogue", code: "ONLYFIRST", expectError: true},
		{name: "Unknown code", code: "NOTACODE", expectError: true},
		{name: "Too short", code: "SHORT", expectError: true},
		{name: "Too long", code: "ABCDEFGHIJKLMNOPQRSTU", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			percent, err := r.Resolve(context.Background(), tt.code)

			if tt.expectError {
				var bizErr *model.BusinessError
				require.ErrorAs(t, err, &bizErr)
				assert.Equal(t, model.ErrCodeInvalidPromoCode, bizErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedPercent, percent)
		})
	}
}

func TestResolver_SingleCatalogueMatchIsEnough(t *testing.T) {
	r := newTestResolver(t, 1, catalogOf(map[string]int{"WELCOME10": 10}))

	percent, err := r.Resolve(context.Background(), "WELCOME10")

	require.NoError(t, err)
	assert.Equal(t, 10, percent)
}

func TestResolver_NoCataloguesRejectsEverything(t *testing.T) {
	r := newTestResolver(t, 1)

	_, err := r.Resolve(context.Background(), "WELCOME10")

	var bizErr *model.BusinessError
	require.ErrorAs(t, err, &bizErr)
}

func TestNewResolver_LoadError(t *testing.T) {
	loader := &mockLoader{loadFunc: func(_ context.Context, path string) (Catalog, error) {
		if path == "bad.gz" {
			return nil, errors.New("corrupt")
		}
		return catalogOf(nil), nil
	}}

	r, err := NewResolver(context.Background(), ResolverConfig{Files: []string{"good.gz", "bad.gz"}, MinMatchCount: 1}, loader, zerolog.Nop())

	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "bad.gz")
}

func TestResolver_WithCatalogueFiles(t *testing.T) {
	file1 := createTestCatalog(t, "base1.gz", []string{"VALIDONE1,10", "ALLTHREE1,30", "ONLYONE11,5"})
	file2 := createTestCatalog(t, "base2.gz", []string{"VALIDONE1,12", "ALLTHREE1,20"})
	file3 := createTestCatalog(t, "base3.gz", []string{"ALLTHREE1,25"})

	r, err := NewResolver(context.Background(),
		ResolverConfig{Files: []string{file1, file2, file3}, MinMatchCount: 2},
		NewFileLoader(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	percent, err := r.Resolve(context.Background(), "VALIDONE1")
	require.NoError(t, err)
	assert.Equal(t, 10, percent)

	percent, err = r.Resolve(context.Background(), "ALLTHREE1")
	require.NoError(t, err)
	assert.Equal(t, 20, percent)

	_, err = r.Resolve(context.Background(), "ONLYONE11")
	assert.Error(t, err)
}

func TestResolver_ConcurrentResolve(t *testing.T) {
	r := newTestResolver(t, 2,
		catalogOf(map[string]int{"BOTHFILES": 15}),
		catalogOf(map[string]int{"BOTHFILES": 10}),
	)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			percent, err := r.Resolve(context.Background(), "BOTHFILES")
			assert.NoError(t, err)
			assert.Equal(t, 10, percent)
		}()
	}
	wg.Wait()
}
