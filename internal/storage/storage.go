// Package storage defines the SQLite persistence for restaurants and neighbour lists.
package storage

import (
	"context"

	"github.com/hyperjump/ruiji/internal/dataset"
	"github.com/hyperjump/ruiji/internal/models"
)

// Storage persists the catalog tables. It satisfies dataset.Loader so the server can read
// from SQLite instead of workbooks.
type Storage interface {
	dataset.Loader

	// Import replaces all stored entities and neighbour lists in one transaction.
	Import(ctx context.Context, entities []*models.Entity, neighbors map[int][]int) error

	// Stats
	CountEntities(ctx context.Context) (int64, error)
	CountNeighbors(ctx context.Context) (int64, error)
}
