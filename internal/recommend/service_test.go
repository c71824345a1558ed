package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/ruiji/internal/models"
)

func entity(i int, name, cuisines, rating, cost, location string, r float64) *models.Entity {
	return &models.Entity{
		Index: i,
		Name:  name,
		Attributes: map[string]string{
			models.AttrCuisines: cuisines,
			models.AttrRating:   rating,
			models.AttrCost:     cost,
			models.AttrLocation: location,
		},
		Rating:   r,
		Features: []float64{float64(i)},
	}
}

func fixture() ([]*models.Entity, map[int][]int) {
	entities := []*models.Entity{
		entity(0, "Meghana Foods", "Biryani", "4.4", "600", "BTM", 4.4),
		entity(1, "Empire", "North Indian", "3.9", "500", "Koramangala", 3.9),
		entity(2, "Truffles", "Burger", "4.6", "700", "Koramangala", 4.6),
		entity(3, "Empire", "North Indian", "3.9", "500", "Koramangala", 3.9),
		entity(4, "Chianti", "Italian", "3.9", "1200", "Indiranagar", 3.9),
		entity(5, "Onesta", "Pizza", "4.1", "600", "HSR", 4.1),
	}
	neighbors := map[int][]int{
		0: {1, 2, 3, 4, 5, 99},
		2: {0},
	}
	return entities, neighbors
}

type stubSuggester struct {
	names []string
	err   error
	limit int
}

func (s *stubSuggester) Suggest(query string, limit int) ([]string, error) {
	s.limit = limit
	return s.names, s.err
}

func TestCatalog_Lookup(t *testing.T) {
	entities, neighbors := fixture()
	c := NewCatalog(entities, neighbors)

	for _, q := range []string{"Meghana Foods", "meghana foods", "  MEGHANA FOODS ", "mEgHaNa FoOdS"} {
		idx, ok := c.Lookup(q)
		assert.True(t, ok, q)
		assert.Equal(t, 0, idx, q)
	}
	idx, ok := c.Lookup("empire")
	require.True(t, ok)
	assert.Equal(t, 1, idx, "first row with a shared name wins")

	_, ok = c.Lookup("Meghana")
	assert.False(t, ok)
	_, ok = c.Lookup("")
	assert.False(t, ok)

	assert.Nil(t, c.Entity(-1))
	assert.Nil(t, c.Entity(6))
	assert.Equal(t, 6, c.Len())
	assert.Equal(t, "Chianti", c.Names()[4])
}

func TestService_Recommend(t *testing.T) {
	entities, neighbors := fixture()
	s := NewService(NewCatalog(entities, neighbors))

	got, err := s.Recommend(context.Background(), "meghana foods")
	require.NoError(t, err)

	// 1 and 3 render identically so both go; 99 is out of range.
	require.Len(t, got.Recommendations, 3)
	assert.Equal(t, "Truffles", got.Recommendations[0].Name)
	assert.Equal(t, "Onesta", got.Recommendations[1].Name)
	assert.Equal(t, "Chianti", got.Recommendations[2].Name)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, "Meghana Foods", got.Name)
	assert.Equal(t, "meghana foods", got.Query)
	assert.Equal(t, "TOP 3 RESTAURANTS LIKE MEGHANA FOODS WITH SIMILAR REVIEWS: ", got.Heading)
	assert.Equal(t, []string{"Burger", "4.6", "700", "Koramangala"}, got.Recommendations[0].Cells())
}

func TestService_RecommendStableRatingOrder(t *testing.T) {
	entities := []*models.Entity{
		entity(0, "Query", "x", "1", "1", "a", 1),
		entity(1, "B", "b", "4", "1", "b", 4),
		entity(2, "C", "c", "4", "1", "c", 4),
		entity(3, "D", "d", "5", "1", "d", 5),
	}
	s := NewService(NewCatalog(entities, map[int][]int{0: {2, 1, 3}}))
	got, err := s.Recommend(context.Background(), "query")
	require.NoError(t, err)
	names := make([]string, len(got.Recommendations))
	for i, r := range got.Recommendations {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"D", "C", "B"}, names)
}

func TestService_RecommendNoNeighbors(t *testing.T) {
	entities, neighbors := fixture()
	s := NewService(NewCatalog(entities, neighbors))
	got, err := s.Recommend(context.Background(), "onesta")
	require.NoError(t, err)
	assert.Empty(t, got.Recommendations)
	assert.Equal(t, "TOP 0 RESTAURANTS LIKE ONESTA WITH SIMILAR REVIEWS: ", got.Heading)
}

func TestService_RecommendNotFound(t *testing.T) {
	entities, neighbors := fixture()
	stub := &stubSuggester{names: []string{"Meghana Foods"}}
	s := NewService(NewCatalog(entities, neighbors, WithSuggester(stub)), WithSuggestionLimit(3))

	_, err := s.Recommend(context.Background(), "Meghana")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, NotFoundMessage, err.Error())
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Meghana", nf.Name)
	assert.Equal(t, []string{"Meghana Foods"}, nf.Suggestions)
	assert.Equal(t, 3, stub.limit)

	stub.err = errors.New("index closed")
	_, err = s.Recommend(context.Background(), "Meghana")
	require.True(t, errors.As(err, &nf))
	assert.Nil(t, nf.Suggestions)
}

func TestService_NoCatalogAndSwap(t *testing.T) {
	s := NewService(nil)
	_, err := s.Recommend(context.Background(), "Truffles")
	assert.ErrorIs(t, err, ErrNoCatalog)

	entities, neighbors := fixture()
	first := NewCatalog(entities, neighbors)
	assert.Nil(t, s.Swap(first))
	got, err := s.Recommend(context.Background(), "truffles")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Total)

	second := NewCatalog(entities[:1], nil)
	assert.Same(t, first, s.Swap(second))
	assert.Same(t, second, s.Catalog())
	_, err = s.Recommend(context.Background(), "truffles")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_CanceledContext(t *testing.T) {
	entities, neighbors := fixture()
	s := NewService(NewCatalog(entities, neighbors))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Recommend(ctx, "truffles")
	assert.ErrorIs(t, err, context.Canceled)
}

type memLoader struct {
	entities  []*models.Entity
	neighbors map[int][]int
	err       error
}

func (m *memLoader) LoadEntities(ctx context.Context) ([]*models.Entity, error) {
	return m.entities, m.err
}

func (m *memLoader) LoadNeighbors(ctx context.Context) (map[int][]int, error) {
	return m.neighbors, nil
}

func (m *memLoader) Close() error { return nil }

func TestBuild(t *testing.T) {
	entities, neighbors := fixture()
	c, err := Build(context.Background(), &memLoader{entities: entities, neighbors: neighbors},
		BuildOptions{Suggestions: true, Fuzziness: 2})
	require.NoError(t, err)
	defer c.Close()

	s := NewService(c)
	_, err = s.Recommend(context.Background(), "trufles")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	require.NotEmpty(t, nf.Suggestions)
	assert.Equal(t, "Truffles", nf.Suggestions[0])

	_, err = Build(context.Background(), &memLoader{}, BuildOptions{})
	assert.Error(t, err)
	_, err = Build(context.Background(), &memLoader{err: errors.New("boom")}, BuildOptions{})
	assert.ErrorContains(t, err, "boom")
}

func TestReloader(t *testing.T) {
	entities, neighbors := fixture()
	loader := &memLoader{entities: entities, neighbors: neighbors}
	s := NewService(nil)
	r := NewReloader(s, loader, BuildOptions{}, nil)
	assert.True(t, r.LastLoad().IsZero())

	require.NoError(t, r.Reload(context.Background()))
	first := s.Catalog()
	require.NotNil(t, first)
	assert.False(t, r.LastLoad().IsZero())

	loader.err = errors.New("workbook locked")
	assert.Error(t, r.Reload(context.Background()))
	assert.Same(t, first, s.Catalog(), "failed reload keeps the current catalog")

	loader.err = nil
	loader.entities = entities[:2]
	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, 2, s.Catalog().Len())
}
