package catalog

import (
	"math/rand/v2"
	"strings"

	"github.com/pingcap/errors"
)

// ErrEmptyCatalog is returned when a catalog is built without any product codes
var ErrEmptyCatalog = errors.New("product catalog is empty")

// DefaultCodes are the product codes seeded by the bookstore sample data
var DefaultCodes = []string{"P100", "P101", "P102", "P103", "P104"}

// ProductCode is an opaque product identifier
type ProductCode string

// Catalog is an immutable set of product codes
type Catalog struct {
	codes []ProductCode
}

// New builds a catalog, rejecting blank and duplicate codes
func New(codes []string) (*Catalog, error) {
	if len(codes) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[string]struct{}, len(codes))
	out := make([]ProductCode, 0, len(codes))
	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			return nil, errors.New("product code cannot be blank")
		}
		if _, dup := seen[code]; dup {
			return nil, errors.Errorf("duplicate product code: %s", code)
		}
		seen[code] = struct{}{}
		out = append(out, ProductCode(code))
	}
	return &Catalog{codes: out}, nil
}

// Pick draws a code uniformly at random, with replacement
func (c *Catalog) Pick(r *rand.Rand) ProductCode {
	return c.codes[r.IntN(len(c.codes))]
}

// Contains reports whether code is part of the catalog
func (c *Catalog) Contains(code ProductCode) bool {
	for _, existing := range c.codes {
		if existing == code {
			return true
		}
	}
	return false
}

// Len returns the number of codes
func (c *Catalog) Len() int {
	return len(c.codes)
}

// Codes returns a copy of the codes in catalog order
func (c *Catalog) Codes() []ProductCode {
	out := make([]ProductCode, len(c.codes))
	copy(out, c.codes)
	return out
}
