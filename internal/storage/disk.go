package storage

import (
	"os"
	"path/filepath"
)

// FileUsage is the on-disk footprint of one dataset path.
type FileUsage struct {
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
	Missing bool   `json:"missing,omitempty"`
}

// DatasetUsage reports the size of each dataset path (workbooks, SQLite database and its
// WAL sidecars) plus the total. Directories are summed recursively; empty paths are skipped.
func DatasetUsage(paths ...string) ([]FileUsage, int64, error) {
	var usage []FileUsage
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				usage = append(usage, FileUsage{Path: p, Missing: true})
				continue
			}
			return nil, 0, err
		}
		n := info.Size()
		if info.IsDir() {
			if n, err = dirSize(p); err != nil {
				return nil, 0, err
			}
		}
		usage = append(usage, FileUsage{Path: p, Bytes: n})
		total += n
	}
	return usage, total, nil
}

// SQLitePaths returns the database file and its WAL-mode sidecars.
func SQLitePaths(dbPath string) []string {
	if dbPath == "" {
		return nil
	}
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
