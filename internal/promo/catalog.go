package promo

import "strings"

// MapCatalog implements Catalog using a map for O(1) lookups.
type MapCatalog struct {
	codes map[string]int
}

// NewMapCatalog creates an empty map-backed catalogue.
func NewMapCatalog(capacity int) *MapCatalog {
	return &MapCatalog{
		codes: make(map[string]int, capacity),
	}
}

// Lookup returns the percent stored for code.
func (c *MapCatalog) Lookup(code string) (int, bool) {
	percent, ok := c.codes[Normalize(code)]
	return percent, ok
}

// Size returns the number of codes in the catalogue.
func (c *MapCatalog) Size() int {
	return len(c.codes)
}

// Add stores code with percent. A duplicate keeps the smaller percent.
func (c *MapCatalog) Add(code string, percent int) {
	code = Normalize(code)
	if existing, ok := c.codes[code]; ok && existing <= percent {
		return
	}
	c.codes[code] = percent
}

// Normalize trims and upper-cases a promo code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
