// Package recommend resolves a restaurant name to its precomputed neighbours and renders them
// as recommendations.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/ruiji/internal/dataset"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/suggest"
)

// Suggester proposes catalog names close to a query that did not resolve.
type Suggester interface {
	Suggest(query string, limit int) ([]string, error)
}

// Catalog is an immutable snapshot of the restaurants and their neighbour lists.
type Catalog struct {
	entities  []*models.Entity
	byName    map[string]int
	neighbors map[int][]int
	suggester Suggester
	closer    func() error
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithSuggester attaches a name suggester used when a lookup misses.
func WithSuggester(s Suggester) CatalogOption {
	return func(c *Catalog) {
		c.suggester = s
	}
}

// NewCatalog indexes entities by lower-cased, trimmed name. When several rows share a name,
// the first row wins. Rows with blank names are kept for neighbour positions but cannot be looked up.
func NewCatalog(entities []*models.Entity, neighbors map[int][]int, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		entities:  entities,
		byName:    make(map[string]int, len(entities)),
		neighbors: neighbors,
	}
	for i, e := range entities {
		key := normalizeName(e.Name)
		if key == "" {
			continue
		}
		if _, ok := c.byName[key]; !ok {
			c.byName[key] = i
		}
	}
	if c.neighbors == nil {
		c.neighbors = map[int][]int{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the row index of name, ignoring case and surrounding spaces.
func (c *Catalog) Lookup(name string) (int, bool) {
	idx, ok := c.byName[normalizeName(name)]
	return idx, ok
}

// Entity returns the entity at row idx, or nil when out of range.
func (c *Catalog) Entity(idx int) *models.Entity {
	if idx < 0 || idx >= len(c.entities) {
		return nil
	}
	return c.entities[idx]
}

// Neighbors returns the stored neighbour list for row idx.
func (c *Catalog) Neighbors(idx int) []int {
	return c.neighbors[idx]
}

// Len returns the number of rows.
func (c *Catalog) Len() int {
	return len(c.entities)
}

// Names returns every row's name in row order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entities))
	for i, e := range c.entities {
		names[i] = e.Name
	}
	return names
}

// Close releases resources held by the catalog's suggester, if it owns one.
func (c *Catalog) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

// BuildOptions controls Build.
type BuildOptions struct {
	// Suggestions builds a fuzzy name index for unknown lookups.
	Suggestions bool
	// Fuzziness is the maximum edit distance per term for suggestions; 0 is exact.
	Fuzziness int
}

// Build loads entities and neighbour lists from loader and returns a ready Catalog.
func Build(ctx context.Context, loader dataset.Loader, opts BuildOptions) (*Catalog, error) {
	entities, err := loader.LoadEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("load entities: dataset is empty")
	}
	neighbors, err := loader.LoadNeighbors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load neighbors: %w", err)
	}
	c := NewCatalog(entities, neighbors)
	if opts.Suggestions {
		idx, err := suggest.NewIndex(c.Names(), opts.Fuzziness)
		if err != nil {
			return nil, err
		}
		c.suggester = idx
		c.closer = idx.Close
	}
	return c, nil
}
