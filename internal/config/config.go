// Package config provides configuration loading and structs for the ruiji server and CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Data sources.
const (
	SourceWorkbook = "workbook"
	SourceSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	LogLevel   string           `yaml:"log_level"`
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Watch      WatchConfig      `yaml:"watch"`
	Suggest    SuggestConfig    `yaml:"suggest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// MaxSimilarityCells caps rows(m1)*rows(m2) for ad-hoc similarity requests.
	MaxSimilarityCells int `yaml:"max_similarity_cells"`
	// MaxRequestBytes caps the body of ad-hoc similarity requests.
	MaxRequestBytes int64 `yaml:"max_request_bytes"`
}

// DataConfig locates the restaurant dataset.
type DataConfig struct {
	FeaturesPath   string `yaml:"features_path"`
	NeighborsPath  string `yaml:"neighbors_path"`
	FeaturesSheet  string `yaml:"features_sheet"`
	NeighborsSheet string `yaml:"neighbors_sheet"`
	SQLitePath     string `yaml:"sqlite_path"`
	// Source is "workbook" (default) or "sqlite".
	Source string `yaml:"source"`
}

// SimilarityConfig holds batch computation settings.
type SimilarityConfig struct {
	BatchSize      int      `yaml:"batch_size"`
	Workers        int      `yaml:"workers"`
	TopK           int      `yaml:"top_k"`
	Sparse         bool     `yaml:"sparse"`
	FeatureColumns []string `yaml:"feature_columns"`
}

// WatchConfig holds dataset hot-reload settings.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// SuggestConfig holds "did you mean" settings for unknown names.
type SuggestConfig struct {
	Enabled *bool `yaml:"enabled"`
	// Fuzziness is the maximum edit distance per term, 0-2; 0 matches terms exactly.
	Fuzziness *int `yaml:"fuzziness"`
	Limit     int  `yaml:"limit"`
}

// EnabledOrDefault returns whether suggestions are on; defaults to true when unset.
func (s *SuggestConfig) EnabledOrDefault() bool {
	if s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// FuzzinessOrDefault returns the configured edit distance; defaults to 2 when unset.
func (s *SuggestConfig) FuzzinessOrDefault() int {
	if s.Fuzziness != nil {
		return *s.Fuzziness
	}
	return 2
}

// Load reads and parses the config file at path, expands paths, applies defaults, and validates.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Data.FeaturesPath = expandPath(cfg.Data.FeaturesPath, configDir)
	cfg.Data.NeighborsPath = expandPath(cfg.Data.NeighborsPath, configDir)
	cfg.Data.SQLitePath = expandPath(cfg.Data.SQLitePath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if c.Similarity.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("similarity.batch_size must be positive, got %d", c.Similarity.BatchSize))
	}
	if c.Similarity.TopK <= 0 {
		errs = append(errs, fmt.Errorf("similarity.top_k must be positive, got %d", c.Similarity.TopK))
	}
	if c.Server.MaxRequestBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_request_bytes must be positive, got %d", c.Server.MaxRequestBytes))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Data.Source {
	case SourceWorkbook, SourceSQLite:
	default:
		errs = append(errs, fmt.Errorf("data.source must be %q or %q, got %q", SourceWorkbook, SourceSQLite, c.Data.Source))
	}
	if f := c.Suggest.Fuzziness; f != nil && (*f < 0 || *f > 2) {
		errs = append(errs, fmt.Errorf("suggest.fuzziness must be 0-2, got %d", *f))
	}
	return errors.Join(errs...)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
