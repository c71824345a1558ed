package recommend

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/dataset"
)

// Reloader rebuilds the catalog from a loader and swaps it into a Service.
type Reloader struct {
	service *Service
	loader  dataset.Loader
	opts    BuildOptions
	logger  *zap.Logger

	mu       sync.Mutex
	lastLoad time.Time
}

// NewReloader returns a Reloader for service.
func NewReloader(service *Service, loader dataset.Loader, opts BuildOptions, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{service: service, loader: loader, opts: opts, logger: logger}
}

// Reload builds a fresh catalog and installs it. On failure the current catalog stays in place.
// Concurrent calls are serialized.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	c, err := Build(ctx, r.loader, r.opts)
	if err != nil {
		r.logger.Error("catalog reload failed", zap.Error(err))
		return err
	}
	old := r.service.Swap(c)
	if old != nil {
		if err := old.Close(); err != nil {
			r.logger.Warn("close previous catalog", zap.Error(err))
		}
	}
	r.lastLoad = time.Now()
	r.logger.Info("catalog loaded",
		zap.Int("restaurants", c.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// LastLoad returns when the catalog was last installed, or the zero time.
func (r *Reloader) LastLoad() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastLoad
}
