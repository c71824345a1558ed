package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/models"
)

// ErrNotFound is returned when a restaurant name is not in the catalog.
var ErrNotFound = errors.New("restaurant not found")

// ErrNoCatalog is returned before any catalog has been loaded.
var ErrNoCatalog = errors.New("catalog not loaded")

// NotFoundMessage is the user-facing text for an unknown restaurant.
const NotFoundMessage = "This Restaurant name does not exist. Kindly enter proper full name, eg : (Meghana Foods) instead of (Meghana)"

// HeadingFormat renders the result heading from the row count and the upper-cased query.
const HeadingFormat = "TOP %d RESTAURANTS LIKE %s WITH SIMILAR REVIEWS: "

// NotFoundError carries the unresolved name and any close matches.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	return NotFoundMessage
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Service answers recommendation requests against the current catalog.
type Service struct {
	catalog         atomic.Pointer[Catalog]
	suggestionLimit int
	logger          *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSuggestionLimit caps the suggestions returned with ErrNotFound.
func WithSuggestionLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.suggestionLimit = n
		}
	}
}

// NewService returns a Service serving catalog, which may be nil until the first Swap.
func NewService(catalog *Catalog, opts ...Option) *Service {
	s := &Service{suggestionLimit: 5, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if catalog != nil {
		s.catalog.Store(catalog)
	}
	return s
}

// Swap installs a new catalog and returns the previous one.
func (s *Service) Swap(c *Catalog) *Catalog {
	return s.catalog.Swap(c)
}

// Catalog returns the current catalog, or nil.
func (s *Service) Catalog() *Catalog {
	return s.catalog.Load()
}

// Recommend resolves name and returns its neighbours as display rows. Rows whose display
// attributes occur more than once are all dropped; the rest are ordered by rating, highest first.
func (s *Service) Recommend(ctx context.Context, name string) (*models.RecommendResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := s.catalog.Load()
	if c == nil {
		return nil, ErrNoCatalog
	}
	idx, ok := c.Lookup(name)
	if !ok {
		return nil, &NotFoundError{Name: name, Suggestions: s.suggestions(c, name)}
	}

	var rows []*models.Entity
	for _, n := range c.Neighbors(idx) {
		e := c.Entity(n)
		if e == nil {
			s.logger.Warn("neighbour index out of range",
				zap.Int("row", idx), zap.Int("neighbour", n), zap.Int("rows", c.Len()))
			continue
		}
		rows = append(rows, e)
	}
	rows = dropDuplicates(rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rating > rows[j].Rating })

	recs := make([]*models.Recommendation, len(rows))
	for i, e := range rows {
		recs[i] = &models.Recommendation{
			Name:     e.Name,
			Cuisines: e.Attribute(models.AttrCuisines),
			Rating:   e.Rating,
			Cost:     e.Attribute(models.AttrCost),
			Location: e.Attribute(models.AttrLocation),
		}
	}
	query := strings.TrimSpace(name)
	return &models.RecommendResponse{
		Query:           query,
		Name:            c.Entity(idx).Name,
		Heading:         fmt.Sprintf(HeadingFormat, len(recs), strings.ToUpper(query)),
		Recommendations: recs,
		Total:           len(recs),
	}, nil
}

func (s *Service) suggestions(c *Catalog, name string) []string {
	if c.suggester == nil || s.suggestionLimit == 0 {
		return nil
	}
	out, err := c.suggester.Suggest(name, s.suggestionLimit)
	if err != nil {
		s.logger.Warn("suggestions failed", zap.String("name", name), zap.Error(err))
		return nil
	}
	return out
}

// dropDuplicates removes every row whose display attributes match another row's.
func dropDuplicates(rows []*models.Entity) []*models.Entity {
	counts := make(map[string]int, len(rows))
	for _, e := range rows {
		counts[e.DisplayKey()]++
	}
	out := rows[:0:0]
	for _, e := range rows {
		if counts[e.DisplayKey()] == 1 {
			out = append(out, e)
		}
	}
	return out
}
