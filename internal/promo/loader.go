package promo

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	initialCatalogCapacity = 1024
	cancelCheckInterval    = 100_000
)

// fileLoader implements Loader for gzipped catalogue files on the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based catalogue loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "promo-file-loader").Logger(),
	}
}

// Load reads a gzipped catalogue file.
func (l *fileLoader) Load(ctx context.Context, path string) (Catalog, error) {
	l.logger.Info().Str("file", path).Msg("loading promo catalogue")

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open promo catalogue")
		return nil, fmt.Errorf("failed to open promo catalogue %s: %w", path, err)
	}
	defer file.Close()

	catalog, skipped, err := parseCatalog(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read promo catalogue")
		return nil, fmt.Errorf("failed to read promo catalogue %s: %w", path, err)
	}

	l.logger.Info().
		Str("file", path).
		Int("codes_loaded", catalog.Size()).
		Int("lines_skipped", skipped).
		Msg("promo catalogue loaded")

	return catalog, nil
}

// parseCatalog decompresses r and reads CODE,PERCENT lines. Blank lines are ignored;
// malformed lines and percents outside [1, 100] are skipped and counted.
func parseCatalog(ctx context.Context, r io.Reader) (*MapCatalog, int, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	catalog := NewMapCatalog(initialCatalogCapacity)

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lines, skipped := 0, 0
	for scanner.Scan() {
		lines++
		if lines%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, skipped, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		code, rawPercent, ok := strings.Cut(line, ",")
		if !ok {
			skipped++
			continue
		}
		percent, err := strconv.Atoi(strings.TrimSpace(rawPercent))
		if err != nil || percent < 1 || percent > 100 || strings.TrimSpace(code) == "" {
			skipped++
			continue
		}

		catalog.Add(code, percent)
	}

	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	if err := ctx.Err(); err != nil {
		return nil, skipped, err
	}

	return catalog, skipped, nil
}
