// Command generate_sample_promos writes gzipped CODE,PERCENT promo catalogues for local runs.
//
// With PROMO_MIN_MATCH_COUNT=2 the codes listed in at least two files resolve; the others
// are rejected. A code listed with different percents resolves to the smallest one.
package main

import (
	"compress/gzip"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

type entry struct {
	code    string
	percent int
}

var catalogues = map[string][]entry{
	"promobase1.gz": {
		{"WELCOME10", 10},
		{"FREESHIP5", 5},
		{"ALLTHREE20", 20},
		{"ONLYONE111", 50},
		{"SUMMER15", 15},
	},
	"promobase2.gz": {
		{"WELCOME10", 10},
		{"FREESHIP5", 5},
		{"ALLTHREE20", 25},
		{"ONLYTWO222", 50},
		{"WINTER30", 30},
	},
	"promobase3.gz": {
		{"WINTER30", 30},
		{"SUMMER15", 15},
		{"ALLTHREE20", 20},
		{"ONLYTHREE3", 50},
		{"SPRING40", 40},
	},
}

func main() {
	dir := flag.String("dir", "data/promos", "output directory")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", *dir).Msg("failed to create directory")
	}

	names := make([]string, 0, len(catalogues))
	for name := range catalogues {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(*dir, name)
		paths = append(paths, path)
		if err := writeCatalogue(path, catalogues[name]); err != nil {
			logger.Fatal().Err(err).Str("file", path).Msg("failed to write catalogue")
		}
		logger.Info().Str("file", path).Int("codes", len(catalogues[name])).Msg("catalogue written")
	}

	fmt.Printf("\nPROMO_FILES=%s\n", strings.Join(paths, ","))
	fmt.Println("\nWith PROMO_MIN_MATCH_COUNT=2:")
	fmt.Println("  valid:   WELCOME10, FREESHIP5, ALLTHREE20 (20%), SUMMER15, WINTER30")
	fmt.Println("  invalid: ONLYONE111, ONLYTWO222, ONLYTHREE3, SPRING40")
}

func writeCatalogue(path string, entries []entry) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	gz := gzip.NewWriter(file)
	for _, e := range entries {
		if _, err := fmt.Fprintf(gz, "%s,%d\n", e.code, e.percent); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}

	return gz.Close()
}
