// Package precompute builds per-restaurant neighbour lists from the feature matrix.
package precompute

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/ruiji/internal/dataset"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/similarity"
)

// Defaults for a Job.
const (
	DefaultTopK      = 30
	DefaultBatchSize = 1000
)

// Job computes the self-similarity of a catalog in batches and keeps the top-k rows per row.
type Job struct {
	computer  *similarity.Computer
	topK      int
	batchSize int
	sparse    bool
	logger    *zap.Logger
}

// Option configures a Job.
type Option func(*Job)

// WithTopK sets how many neighbours each row keeps.
func WithTopK(k int) Option {
	return func(j *Job) { j.topK = k }
}

// WithBatchSize sets the number of rows per kernel call.
func WithBatchSize(n int) Option {
	return func(j *Job) { j.batchSize = n }
}

// WithSparse builds the feature matrix in CSR form.
func WithSparse(sparse bool) Option {
	return func(j *Job) { j.sparse = sparse }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(j *Job) {
		if l != nil {
			j.logger = l
		}
	}
}

// NewJob returns a Job running on computer (a default Computer when nil).
func NewJob(computer *similarity.Computer, opts ...Option) *Job {
	if computer == nil {
		computer = similarity.NewComputer()
	}
	j := &Job{computer: computer, topK: DefaultTopK, batchSize: DefaultBatchSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Result is the outcome of one run.
type Result struct {
	RunID     string
	Neighbors [][]int
	Rows      int
	TopK      int
	BatchSize int
	Sparse    bool
	StartedAt time.Time
	Elapsed   time.Duration
}

// Meta describes the run for the neighbours workbook's meta sheet.
func (r *Result) Meta() map[string]string {
	return map[string]string{
		"run_id":     r.RunID,
		"rows":       strconv.Itoa(r.Rows),
		"top_k":      strconv.Itoa(r.TopK),
		"batch_size": strconv.Itoa(r.BatchSize),
		"sparse":     strconv.FormatBool(r.Sparse),
		"started_at": r.StartedAt.UTC().Format(time.RFC3339),
		"elapsed_ms": strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
	}
}

// Run computes neighbour lists for entities. Row i's list holds the indices of the topK most
// similar other rows, highest similarity first, ties to the lower index.
func (j *Job) Run(ctx context.Context, entities []*models.Entity) (*Result, error) {
	if j.topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", similarity.ErrInvalidArgument, j.topK)
	}
	m, err := dataset.FeatureMatrix(entities, j.sparse)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:     uuid.NewString(),
		Neighbors: make([][]int, len(entities)),
		Rows:      len(entities),
		TopK:      j.topK,
		BatchSize: j.batchSize,
		Sparse:    j.sparse,
		StartedAt: time.Now(),
	}
	j.logger.Info("precompute started",
		zap.String("run_id", res.RunID),
		zap.Int("rows", res.Rows),
		zap.Int("top_k", j.topK),
		zap.Int("batch_size", j.batchSize))

	err = j.computer.Stream(ctx, m, m, j.batchSize, func(b similarity.Batch, block *mat.Dense) error {
		for i := 0; i < b.Rows(); i++ {
			row := b.Start + i
			res.Neighbors[row] = similarity.TopK(block.RawRowView(i), j.topK, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("precompute %s: %w", res.RunID, err)
	}
	res.Elapsed = time.Since(res.StartedAt)
	j.logger.Info("precompute finished",
		zap.String("run_id", res.RunID),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}
