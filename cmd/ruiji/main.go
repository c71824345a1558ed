// Package main is the ruiji CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/dataset"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ruiji/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// When no file exists at the default path either, built-in defaults are returned.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newLogger(cfg *config.Config, debug bool) *zap.Logger {
	logger, err := utils.NewLogger(cfg.Debug || debug, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// openLoader returns the configured dataset source.
func openLoader(cfg *config.Config) (dataset.Loader, error) {
	if cfg.Data.Source == config.SourceSQLite {
		return storage.NewSQLiteStorage(cfg.Data.SQLitePath)
	}
	return dataset.NewWorkbook(workbookOptions(cfg)), nil
}

func workbookOptions(cfg *config.Config) dataset.WorkbookOptions {
	return dataset.WorkbookOptions{
		FeaturesPath:   cfg.Data.FeaturesPath,
		NeighborsPath:  cfg.Data.NeighborsPath,
		FeaturesSheet:  cfg.Data.FeaturesSheet,
		NeighborsSheet: cfg.Data.NeighborsSheet,
		FeatureColumns: cfg.Similarity.FeatureColumns,
	}
}

// watchedFiles lists the files whose change should trigger a reload.
func watchedFiles(cfg *config.Config) []string {
	if cfg.Data.Source == config.SourceSQLite {
		// Commits land in the WAL first; the main file changes on checkpoint.
		return []string{cfg.Data.SQLitePath, cfg.Data.SQLitePath + "-wal"}
	}
	return []string{cfg.Data.FeaturesPath, cfg.Data.NeighborsPath}
}

// joinArgs joins all positional args with spaces so multi-word names
// work the same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument, so "ruiji similar Meghana Foods -output json" would
// otherwise leave -output unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer(os.Args[2:])
	case "precompute":
		runPrecompute(os.Args[2:])
	case "similar":
		runSimilar(os.Args[2:])
	case "compute":
		runCompute(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("ruiji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ruiji - Restaurant recommendations from batched cosine similarity

Usage:
  ruiji server [flags]             Start the HTTP server
  ruiji precompute [flags]         Compute neighbour lists from the features workbook
  ruiji similar [flags] <name>     Recommend restaurants similar to <name>
  ruiji compute [flags]            Print the similarity matrix between two workbooks
  ruiji import [flags]             Copy the workbooks into the SQLite catalog
  ruiji export [flags]             Write the SQLite catalog back to workbooks
  ruiji status [flags]             Show catalog and dataset status
  ruiji version                    Show version
  ruiji help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/ruiji/config.yaml)
  --debug            Enable debug logging

Server Flags:
  --watch            Reload the catalog when dataset files change (overrides config)

Precompute Flags:
  --features string  Features workbook (default from config)
  --out string       Neighbours workbook to write (default from config)
  --top-k int        Neighbours per restaurant (default from config, 30)
  --batch-size int   Rows per similarity batch (default from config, 1000)
  --workers int      Concurrent batches (default from config, 1)
  --sparse           Use a sparse (CSR) feature matrix
  --progress         Show a progress bar (default: true)

Similar Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to read the dataset directly.
  --output string    Output format: text or json (default: text)

Compute Flags:
  --m1 string        Workbook for the row set
  --m2 string        Workbook for the column set (default: --m1)
  --batch-size int   Rows per batch (default from config)
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode.
  --output string    Output format: text or json (default: text)

Examples:
  ruiji precompute --top-k 30 --batch-size 500
  ruiji server --watch
  ruiji similar Meghana Foods
  ruiji similar --output json "truffles"
  ruiji compute --m1 a.xlsx --m2 b.xlsx --batch-size 100
  ruiji import && ruiji status --server ""`)
}
