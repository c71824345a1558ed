package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  read_timeout: 5s
data:
  features_path: "/srv/zomato.xlsx"
similarity:
  batch_size: 250
  workers: 4
  feature_columns: ["f_ambience", "f_service"]
watch:
  enabled: true
  debounce: 500ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read_timeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Data.FeaturesPath != "/srv/zomato.xlsx" {
		t.Errorf("features_path = %s", cfg.Data.FeaturesPath)
	}
	if cfg.Similarity.BatchSize != 250 || cfg.Similarity.Workers != 4 {
		t.Errorf("similarity = %+v", cfg.Similarity)
	}
	if len(cfg.Similarity.FeatureColumns) != 2 || cfg.Similarity.FeatureColumns[1] != "f_service" {
		t.Errorf("feature_columns = %v", cfg.Similarity.FeatureColumns)
	}
	if !cfg.Watch.Enabled || cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("watch = %+v", cfg.Watch)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: true\nlog_level: debug\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %s", cfg.LogLevel)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
data:
  features_path: "./data/zomato.xlsx"
  neighbors_path: "./data/similar.xlsx"
  sqlite_path: "./data/db/catalog.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "zomato.xlsx"); cfg.Data.FeaturesPath != want {
		t.Errorf("features_path = %s, want %s", cfg.Data.FeaturesPath, want)
	}
	if want := filepath.Join(dir, "data", "similar.xlsx"); cfg.Data.NeighborsPath != want {
		t.Errorf("neighbors_path = %s, want %s", cfg.Data.NeighborsPath, want)
	}
	if want := filepath.Join(dir, "data", "db", "catalog.db"); cfg.Data.SQLitePath != want {
		t.Errorf("sqlite_path = %s, want %s", cfg.Data.SQLitePath, want)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"negative batch", "similarity:\n  batch_size: -1\n", "batch_size"},
		{"negative top_k", "similarity:\n  top_k: -3\n", "top_k"},
		{"bad source", "data:\n  source: csv\n", "data.source"},
		{"bad fuzziness", "suggest:\n  fuzziness: 5\n", "fuzziness"},
		{"negative fuzziness", "suggest:\n  fuzziness: -1\n", "fuzziness"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad yaml", "server: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Similarity.BatchSize != 1000 || cfg.Similarity.TopK != 30 || cfg.Similarity.Workers != 1 {
		t.Errorf("default similarity: got %+v", cfg.Similarity)
	}
	if cfg.Data.Source != SourceWorkbook {
		t.Errorf("default source: got %s", cfg.Data.Source)
	}
	if cfg.Suggest.Fuzziness != nil || cfg.Suggest.FuzzinessOrDefault() != 2 || cfg.Suggest.Limit != 5 {
		t.Errorf("default suggest: got %+v", cfg.Suggest)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("default debounce: got %v", cfg.Watch.Debounce)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSuggestConfig_EnabledOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		s := &SuggestConfig{}
		if got := s.EnabledOrDefault(); !got {
			t.Errorf("EnabledOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		s := &SuggestConfig{Enabled: &f}
		if got := s.EnabledOrDefault(); got {
			t.Errorf("EnabledOrDefault() = %v, want false", got)
		}
	})
}

func TestLoad_zeroFuzzinessIsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "suggest:\n  fuzziness: 0\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Suggest.Fuzziness == nil || *cfg.Suggest.Fuzziness != 0 {
		t.Fatalf("fuzziness = %v, want explicit 0", cfg.Suggest.Fuzziness)
	}
	if got := cfg.Suggest.FuzzinessOrDefault(); got != 0 {
		t.Errorf("FuzzinessOrDefault() = %d, want 0", got)
	}

	cfg, err = Load(writeConfig(t, "suggest:\n  limit: 3\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Suggest.FuzzinessOrDefault(); got != 2 {
		t.Errorf("unset FuzzinessOrDefault() = %d, want 2", got)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Data:   DataConfig{SQLitePath: "/tmp/catalog.db", Source: SourceSQLite},
		Watch:  WatchConfig{Debounce: 750 * time.Millisecond},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Data.Source != SourceSQLite || loaded.Data.SQLitePath != "/tmp/catalog.db" {
		t.Errorf("loaded data: got %+v", loaded.Data)
	}
	if loaded.Watch.Debounce != 750*time.Millisecond {
		t.Errorf("loaded debounce: got %v", loaded.Watch.Debounce)
	}
}
