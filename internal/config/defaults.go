package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.MaxSimilarityCells == 0 {
		cfg.Server.MaxSimilarityCells = 1_000_000
	}
	if cfg.Server.MaxRequestBytes == 0 {
		cfg.Server.MaxRequestBytes = 8 << 20
	}
	if cfg.Data.FeaturesPath == "" {
		cfg.Data.FeaturesPath = "/usr/local/var/ruiji/data/zomato_processed.xlsx"
	}
	if cfg.Data.NeighborsPath == "" {
		cfg.Data.NeighborsPath = "/usr/local/var/ruiji/data/similar_indices.xlsx"
	}
	if cfg.Data.SQLitePath == "" {
		cfg.Data.SQLitePath = "/usr/local/var/ruiji/data/db/catalog.db"
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = SourceWorkbook
	}
	if cfg.Similarity.BatchSize == 0 {
		cfg.Similarity.BatchSize = 1000
	}
	if cfg.Similarity.Workers == 0 {
		cfg.Similarity.Workers = 1
	}
	if cfg.Similarity.TopK == 0 {
		cfg.Similarity.TopK = 30
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
	if cfg.Suggest.Limit == 0 {
		cfg.Suggest.Limit = 5
	}
}
