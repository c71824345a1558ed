package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/ruiji/internal/cli"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/dataset"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/precompute"
	"github.com/hyperjump/ruiji/internal/recommend"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/similarity"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/watcher"
)

func buildOptions(cfg *config.Config) recommend.BuildOptions {
	return recommend.BuildOptions{
		Suggestions: cfg.Suggest.EnabledOrDefault(),
		Fuzziness:   cfg.Suggest.FuzzinessOrDefault(),
	}
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (batches, reloads, etc.)")
	watch := fs.Bool("watch", false, "reload the catalog when dataset files change")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger := newLogger(cfg, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("source", cfg.Data.Source),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	loader, err := openLoader(cfg)
	if err != nil {
		logger.Fatal("Failed to open dataset", zap.Error(err))
	}
	defer loader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := recommend.NewService(nil,
		recommend.WithLogger(logger),
		recommend.WithSuggestionLimit(cfg.Suggest.Limit))
	reloader := recommend.NewReloader(svc, loader, buildOptions(cfg), logger)
	if err := reloader.Reload(ctx); err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}

	if cfg.Watch.Enabled || *watch {
		w := watcher.NewWatcher(watchedFiles(cfg), func(paths []string) {
			logger.Info("dataset changed, reloading", zap.Strings("paths", paths))
			_ = reloader.Reload(ctx)
		}, watcher.WithDebounce(cfg.Watch.Debounce), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	computer := similarity.NewComputer(
		similarity.WithWorkers(cfg.Similarity.Workers),
		similarity.WithLogger(logger))
	srv, err := server.NewServer(svc, cfg, logger,
		server.WithComputer(computer),
		server.WithReloader(reloader))
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	if c := svc.Swap(nil); c != nil {
		_ = c.Close()
	}
}

func runPrecompute(args []string) {
	fs := flag.NewFlagSet("precompute", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	features := fs.String("features", "", "features workbook (default from config)")
	out := fs.String("out", "", "neighbours workbook to write (default from config)")
	topK := fs.Int("top-k", 0, "neighbours per restaurant (default from config)")
	batchSize := fs.Int("batch-size", 0, "rows per similarity batch (default from config)")
	workers := fs.Int("workers", 0, "concurrent batches (default from config)")
	sparse := fs.Bool("sparse", false, "use a sparse (CSR) feature matrix")
	progress := fs.Bool("progress", true, "show a progress bar")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger := newLogger(cfg, *debug)
	defer logger.Sync()

	opts := precomputeOptions{
		features:  firstNonEmpty(*features, cfg.Data.FeaturesPath),
		out:       firstNonEmpty(*out, cfg.Data.NeighborsPath),
		topK:      firstPositive(*topK, cfg.Similarity.TopK),
		batchSize: firstPositive(*batchSize, cfg.Similarity.BatchSize),
		workers:   firstPositive(*workers, cfg.Similarity.Workers),
		sparse:    *sparse || cfg.Similarity.Sparse,
		progress:  *progress,
	}
	res, err := precomputeNeighbors(context.Background(), cfg, opts, logger)
	if err != nil {
		fail("Precompute failed: %v", err)
	}
	fmt.Printf("wrote %d neighbour lists to %s (run %s, %s)\n",
		res.Rows, opts.out, res.RunID, res.Elapsed.Round(time.Millisecond))
}

type precomputeOptions struct {
	features  string
	out       string
	topK      int
	batchSize int
	workers   int
	sparse    bool
	progress  bool
}

// precomputeNeighbors reads the features workbook, runs the job, and writes the neighbours workbook.
func precomputeNeighbors(ctx context.Context, cfg *config.Config, opts precomputeOptions, logger *zap.Logger) (*precompute.Result, error) {
	entities, err := dataset.ReadEntities(opts.features, cfg.Data.FeaturesSheet, cfg.Similarity.FeatureColumns)
	if err != nil {
		return nil, err
	}
	computerOpts := []similarity.ComputerOption{
		similarity.WithWorkers(opts.workers),
		similarity.WithLogger(logger),
	}
	if opts.progress {
		batches, err := similarity.Batches(len(entities), opts.batchSize)
		if err != nil {
			return nil, err
		}
		bar := progressbar.Default(int64(len(batches)), "Computing similarity")
		defer bar.Finish()
		computerOpts = append(computerOpts, similarity.WithBatchHook(func(similarity.Batch) {
			_ = bar.Add(1)
		}))
	}
	job := precompute.NewJob(similarity.NewComputer(computerOpts...),
		precompute.WithTopK(opts.topK),
		precompute.WithBatchSize(opts.batchSize),
		precompute.WithSparse(opts.sparse),
		precompute.WithLogger(logger))
	res, err := job.Run(ctx, entities)
	if err != nil {
		return nil, err
	}
	if err := dataset.WriteNeighbors(opts.out, cfg.Data.NeighborsSheet, res.Neighbors, res.Meta()); err != nil {
		return nil, err
	}
	return res, nil
}

func runSimilar(args []string) {
	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the dataset directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	name := joinArgs(fs.Args())
	if name == "" {
		fmt.Fprintln(os.Stderr, "Usage: ruiji similar [flags] <restaurant name>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("%v", err)
	}

	var (
		resp     *models.RecommendResponse
		notFound *models.ErrorResponse
	)
	if *serverURL != "" {
		resp, notFound, err = similarViaHTTP(*serverURL, name)
	} else {
		resp, notFound, err = similarDirect(*configPath, name)
	}
	if err != nil {
		fail("Recommend failed: %v", err)
	}
	if notFound != nil {
		_ = cli.WriteNotFound(os.Stdout, notFound, format)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func similarViaHTTP(serverURL, name string) (*models.RecommendResponse, *models.ErrorResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/recommend?name=" + url.QueryEscape(name))
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var out models.RecommendResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, nil, fmt.Errorf("decode response: %w", err)
		}
		return &out, nil, nil
	case http.StatusGone:
		var out models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, &out, nil
	default:
		b, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
}

func similarDirect(configPath, name string) (*models.RecommendResponse, *models.ErrorResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	loader, err := openLoader(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer loader.Close()
	catalog, err := recommend.Build(context.Background(), loader, buildOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	defer catalog.Close()
	svc := recommend.NewService(catalog, recommend.WithSuggestionLimit(cfg.Suggest.Limit))
	resp, err := svc.Recommend(context.Background(), name)
	var nf *recommend.NotFoundError
	if errors.As(err, &nf) {
		return nil, &models.ErrorResponse{Error: nf.Error(), Status: http.StatusGone, Suggestions: nf.Suggestions}, nil
	}
	return resp, nil, err
}

func runCompute(args []string) {
	fs := flag.NewFlagSet("compute", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	m1Path := fs.String("m1", "", "workbook for the row set")
	m2Path := fs.String("m2", "", "workbook for the column set (default: --m1)")
	sheet := fs.String("sheet", "", "sheet name in both workbooks (default: first sheet)")
	batchSize := fs.Int("batch-size", 0, "rows per batch (default from config)")
	workers := fs.Int("workers", 0, "concurrent batches (default from config)")
	sparse := fs.Bool("sparse", false, "use sparse (CSR) matrices")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	if *m1Path == "" {
		fail("Usage: ruiji compute --m1 <workbook> [--m2 <workbook>]")
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("%v", err)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	resp, err := computeWorkbooks(context.Background(), cfg, computeOptions{
		m1:        *m1Path,
		m2:        firstNonEmpty(*m2Path, *m1Path),
		sheet:     *sheet,
		batchSize: firstPositive(*batchSize, cfg.Similarity.BatchSize),
		workers:   firstPositive(*workers, cfg.Similarity.Workers),
		sparse:    *sparse || cfg.Similarity.Sparse,
	})
	if err != nil {
		fail("Compute failed: %v", err)
	}
	if err := cli.WriteSimilarity(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

type computeOptions struct {
	m1, m2    string
	sheet     string
	batchSize int
	workers   int
	sparse    bool
}

func computeWorkbooks(ctx context.Context, cfg *config.Config, opts computeOptions) (*models.SimilarityResponse, error) {
	start := time.Now()
	load := func(path string) (similarity.Matrix, error) {
		entities, err := dataset.ReadEntities(path, opts.sheet, cfg.Similarity.FeatureColumns)
		if err != nil {
			return nil, err
		}
		return dataset.FeatureMatrix(entities, opts.sparse)
	}
	m1, err := load(opts.m1)
	if err != nil {
		return nil, fmt.Errorf("m1: %w", err)
	}
	m2, err := load(opts.m2)
	if err != nil {
		return nil, fmt.Errorf("m2: %w", err)
	}
	result, err := similarity.NewComputer(similarity.WithWorkers(opts.workers)).ComputeContext(ctx, m1, m2, opts.batchSize)
	if err != nil {
		return nil, err
	}
	rows, cols := result.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, result)
	}
	return &models.SimilarityResponse{
		Rows:       rows,
		Cols:       cols,
		BatchSize:  opts.batchSize,
		Similarity: out,
		QueryTime:  time.Since(start).Milliseconds(),
	}, nil
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dbPath := fs.String("db", "", "SQLite database (default from config)")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	n, err := importWorkbooks(context.Background(), cfg, firstNonEmpty(*dbPath, cfg.Data.SQLitePath))
	if err != nil {
		fail("Import failed: %v", err)
	}
	fmt.Printf("imported %d restaurants into %s\n", n, firstNonEmpty(*dbPath, cfg.Data.SQLitePath))
}

func importWorkbooks(ctx context.Context, cfg *config.Config, dbPath string) (int, error) {
	wb := dataset.NewWorkbook(workbookOptions(cfg))
	entities, err := wb.LoadEntities(ctx)
	if err != nil {
		return 0, err
	}
	neighbors, err := wb.LoadNeighbors(ctx)
	if err != nil {
		return 0, err
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	if err := store.Import(ctx, entities, neighbors); err != nil {
		return 0, err
	}
	return len(entities), nil
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dbPath := fs.String("db", "", "SQLite database (default from config)")
	features := fs.String("features", "", "features workbook to write (default from config)")
	neighbors := fs.String("neighbors", "", "neighbours workbook to write (default from config)")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	n, err := exportWorkbooks(context.Background(), cfg,
		firstNonEmpty(*dbPath, cfg.Data.SQLitePath),
		firstNonEmpty(*features, cfg.Data.FeaturesPath),
		firstNonEmpty(*neighbors, cfg.Data.NeighborsPath))
	if err != nil {
		fail("Export failed: %v", err)
	}
	fmt.Printf("exported %d restaurants\n", n)
}

func exportWorkbooks(ctx context.Context, cfg *config.Config, dbPath, featuresPath, neighborsPath string) (int, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	entities, err := store.LoadEntities(ctx)
	if err != nil {
		return 0, err
	}
	if len(entities) == 0 {
		return 0, fmt.Errorf("catalog %s is empty", dbPath)
	}
	byRow, err := store.LoadNeighbors(ctx)
	if err != nil {
		return 0, err
	}
	columns := featureColumnNames(cfg.Similarity.FeatureColumns, len(entities[0].Features))
	if err := dataset.WriteEntities(featuresPath, cfg.Data.FeaturesSheet, entities, columns); err != nil {
		return 0, err
	}
	lists := make([][]int, len(entities))
	for i := range lists {
		lists[i] = byRow[i]
	}
	meta := map[string]string{"exported_from": dbPath, "exported_at": time.Now().UTC().Format(time.RFC3339)}
	if err := dataset.WriteNeighbors(neighborsPath, cfg.Data.NeighborsSheet, lists, meta); err != nil {
		return 0, err
	}
	return len(entities), nil
}

// featureColumnNames uses the configured names when they match the stored width,
// otherwise f_0..f_{n-1}.
func featureColumnNames(configured []string, n int) []string {
	if len(configured) == n {
		return configured
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("f_%d", i)
	}
	return out
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct mode)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("%v", err)
	}
	var status *server.StatusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fail("Status failed: %v", err)
	}
	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	writeStatusText(os.Stdout, status)
}

func writeStatusText(w io.Writer, status *server.StatusResponse) {
	fmt.Fprintf(w, "source:             %s\n", status.Source)
	fmt.Fprintf(w, "restaurants:        %d\n", status.Restaurants)
	if status.LoadedAt != "" {
		fmt.Fprintf(w, "loaded_at:          %s\n", status.LoadedAt)
	}
	fmt.Fprintf(w, "disk_usage_bytes:   %d   # dataset files on disk\n", status.DiskUsageBytes)
	for _, f := range status.Files {
		if f.Missing {
			fmt.Fprintf(w, "  %s (missing)\n", f.Path)
			continue
		}
		fmt.Fprintf(w, "  %s %d\n", f.Path, f.Bytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "batch_size:         %d\n", status.Config.BatchSize)
	fmt.Fprintf(w, "workers:            %d\n", status.Config.Workers)
	fmt.Fprintf(w, "top_k:              %d\n", status.Config.TopK)
	fmt.Fprintf(w, "suggest:            %t\n", status.Config.Suggest)
}

func statusViaHTTP(serverURL string) (*server.StatusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func statusDirect(configPath string) (*server.StatusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	loader, err := openLoader(cfg)
	if err != nil {
		return nil, err
	}
	defer loader.Close()
	catalog, err := recommend.Build(context.Background(), loader, recommend.BuildOptions{})
	if err != nil {
		return nil, err
	}
	defer catalog.Close()
	return server.BuildStatus(cfg, catalog, time.Time{})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
