// Package dataset loads restaurant features and precomputed neighbour lists, and turns
// feature rows into similarity matrices.
package dataset

import (
	"context"
	"fmt"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/similarity"
)

// Loader reads the two datasets the recommender is built from.
type Loader interface {
	LoadEntities(ctx context.Context) ([]*models.Entity, error)
	LoadNeighbors(ctx context.Context) (map[int][]int, error)
	Close() error
}

// FeatureMatrix stacks the entities' feature vectors into a Dense or, when sparse is set,
// a CSR matrix. All entities must have the same number of features.
func FeatureMatrix(entities []*models.Entity, sparse bool) (similarity.Matrix, error) {
	if len(entities) == 0 {
		return nil, similarity.ErrEmptyMatrix
	}
	rows := make([][]float64, len(entities))
	for i, e := range entities {
		rows[i] = e.Features
	}
	var (
		m   similarity.Matrix
		err error
	)
	if sparse {
		m, err = similarity.CSRFromRows(rows)
	} else {
		m, err = similarity.DenseFromRows(rows)
	}
	if err != nil {
		return nil, fmt.Errorf("build feature matrix: %w", err)
	}
	return m, nil
}
