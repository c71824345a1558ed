package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ruiji/internal/dataset"
	"github.com/hyperjump/ruiji/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		row_idx INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		attributes TEXT,
		features TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS neighbors (
		row_idx INTEGER PRIMARY KEY,
		indices TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Import replaces the entities and neighbors tables.
func (s *SQLiteStorage) Import(ctx context.Context, entities []*models.Entity, neighbors map[int][]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM neighbors`); err != nil {
		return err
	}

	entityStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (row_idx, name, attributes, features) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer entityStmt.Close()
	for _, e := range entities {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes: %w", err)
		}
		features, err := json.Marshal(e.Features)
		if err != nil {
			return fmt.Errorf("failed to marshal features: %w", err)
		}
		if _, err := entityStmt.ExecContext(ctx, e.Index, e.Name, string(attrs), string(features)); err != nil {
			return fmt.Errorf("insert entity %d: %w", e.Index, err)
		}
	}

	neighborStmt, err := tx.PrepareContext(ctx, `INSERT INTO neighbors (row_idx, indices) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer neighborStmt.Close()
	for idx, list := range neighbors {
		if _, err := neighborStmt.ExecContext(ctx, idx, dataset.FormatIndices(list)); err != nil {
			return fmt.Errorf("insert neighbors %d: %w", idx, err)
		}
	}
	return tx.Commit()
}

// LoadEntities returns all entities ordered by row index.
func (s *SQLiteStorage) LoadEntities(ctx context.Context) ([]*models.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_idx, name, attributes, features FROM entities ORDER BY row_idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		var e models.Entity
		var attrsJSON sql.NullString
		var featuresJSON string
		if err := rows.Scan(&e.Index, &e.Name, &attrsJSON, &featuresJSON); err != nil {
			return nil, err
		}
		if attrsJSON.Valid && attrsJSON.String != "" {
			if err := json.Unmarshal([]byte(attrsJSON.String), &e.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attributes for %d: %w", e.Index, err)
			}
		}
		if err := json.Unmarshal([]byte(featuresJSON), &e.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features for %d: %w", e.Index, err)
		}
		if raw := e.Attribute(models.AttrRating); raw != "" {
			if _, err := fmt.Sscan(raw, &e.Rating); err != nil {
				return nil, fmt.Errorf("invalid rating %q for %d", raw, e.Index)
			}
		}
		entities = append(entities, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, e := range entities {
		if e.Index != i {
			return nil, fmt.Errorf("entity rows are not contiguous: row %d has index %d", i, e.Index)
		}
	}
	return entities, nil
}

// LoadNeighbors returns every stored neighbour list keyed by row index.
func (s *SQLiteStorage) LoadNeighbors(ctx context.Context) (map[int][]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT row_idx, indices FROM neighbors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int][]int)
	for rows.Next() {
		var idx int
		var raw string
		if err := rows.Scan(&idx, &raw); err != nil {
			return nil, err
		}
		list, err := dataset.ParseIndices(raw)
		if err != nil {
			return nil, fmt.Errorf("neighbors for %d: %w", idx, err)
		}
		out[idx] = list
	}
	return out, rows.Err()
}

// CountEntities returns the number of stored entities.
func (s *SQLiteStorage) CountEntities(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count)
	return count, err
}

// CountNeighbors returns the number of stored neighbour lists.
func (s *SQLiteStorage) CountNeighbors(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM neighbors`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
