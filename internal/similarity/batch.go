package similarity

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Batch is one contiguous row range [Start, End) of the first matrix.
type Batch struct {
	Index int
	Start int
	End   int
	Total int
}

// Rows returns the batch width.
func (b Batch) Rows() int {
	return b.End - b.Start
}

// Batches splits rows into ceil(rows/batchSize) contiguous ranges. The last range is
// narrower when rows is not a multiple of batchSize.
func Batches(rows, batchSize int) ([]Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, batchSize)
	}
	total := (rows + batchSize - 1) / batchSize
	out := make([]Batch, total)
	for k := range out {
		start := k * batchSize
		out[k] = Batch{Index: k, Start: start, End: min(start+batchSize, rows), Total: total}
	}
	return out, nil
}

// Computer runs a Kernel over row batches of the first matrix and assembles the blocks.
type Computer struct {
	kernel  Kernel
	workers int
	onBatch func(Batch)
	logger  *zap.Logger
}

// ComputerOption configures a Computer.
type ComputerOption func(*Computer)

// WithKernel replaces the default CosineKernel.
func WithKernel(k Kernel) ComputerOption {
	return func(c *Computer) { c.kernel = k }
}

// WithWorkers runs up to n batches concurrently. n <= 1 means sequential.
// Peak transient memory grows to n blocks of batchSize x rows(m2).
func WithWorkers(n int) ComputerOption {
	return func(c *Computer) { c.workers = n }
}

// WithBatchHook registers fn to be called after each batch is written.
// Calls are serialized even when workers > 1.
func WithBatchHook(fn func(Batch)) ComputerOption {
	return func(c *Computer) { c.onBatch = fn }
}

// WithLogger sets a logger for per-batch debug output.
func WithLogger(l *zap.Logger) ComputerOption {
	return func(c *Computer) { c.logger = l }
}

// NewComputer returns a Computer using CosineKernel unless overridden.
func NewComputer(opts ...ComputerOption) *Computer {
	c := &Computer{kernel: CosineKernel{}, workers: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Compute returns the rows(m1) x rows(m2) cosine similarity matrix, processing m1 in
// batches of batchSize rows. The result does not depend on batchSize.
func Compute(m1, m2 Matrix, batchSize int) (*mat.Dense, error) {
	return NewComputer().Compute(m1, m2, batchSize)
}

// Compute is ComputeContext with a background context.
func (c *Computer) Compute(m1, m2 Matrix, batchSize int) (*mat.Dense, error) {
	return c.ComputeContext(context.Background(), m1, m2, batchSize)
}

// ComputeContext validates the inputs, then fills the result batch by batch.
// Shape and batch size are checked before anything is allocated. ctx is checked between batches.
func (c *Computer) ComputeContext(ctx context.Context, m1, m2 Matrix, batchSize int) (*mat.Dense, error) {
	n1, n2, err := validate(m1, m2, batchSize)
	if err != nil {
		return nil, err
	}
	result := mat.NewDense(n1, n2, nil)
	// Each batch touches only its own rows, so concurrent blocks need no locking.
	err = c.Stream(ctx, m1, m2, batchSize, func(b Batch, block *mat.Dense) error {
		result.Slice(b.Start, b.End, 0, n2).(*mat.Dense).Copy(block)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BlockFunc receives the rows [b.Start, b.End) x rows(m2) block of a computation. With more
// than one worker it is called concurrently for distinct batches; block is not reused.
type BlockFunc func(b Batch, block *mat.Dense) error

// Stream runs the kernel batch by batch and hands each block to fn instead of assembling the
// full matrix, so callers that reduce rows (top-k, thresholds) hold at most one block per worker.
func (c *Computer) Stream(ctx context.Context, m1, m2 Matrix, batchSize int, fn BlockFunc) error {
	n1, n2, err := validate(m1, m2, batchSize)
	if err != nil {
		return err
	}
	batches, _ := Batches(n1, batchSize)
	_, d := m1.Dims()
	c.logger.Debug("similarity compute started",
		zap.Int("rows", n1),
		zap.Int("cols", n2),
		zap.Int("dims", d),
		zap.Int("batch_size", batchSize),
		zap.Int("batches", len(batches)),
		zap.Int("workers", c.workers))

	if c.workers <= 1 || len(batches) == 1 {
		for _, b := range batches {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.runBatch(m1, m2, n2, b, fn); err != nil {
				return err
			}
			c.notify(b)
		}
		return nil
	}

	var hookMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, b := range batches {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := c.runBatch(m1, m2, n2, b, fn); err != nil {
				return err
			}
			hookMu.Lock()
			c.notify(b)
			hookMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func validate(m1, m2 Matrix, batchSize int) (n1, n2 int, err error) {
	n1, d1 := m1.Dims()
	n2, d2 := m2.Dims()
	if d1 != d2 {
		return 0, 0, &DimensionError{What: "second matrix", Want: d1, Got: d2}
	}
	if n1 == 0 || n2 == 0 || d1 == 0 {
		return 0, 0, ErrEmptyMatrix
	}
	if batchSize <= 0 {
		return 0, 0, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, batchSize)
	}
	return n1, n2, nil
}

func (c *Computer) runBatch(m1, m2 Matrix, n2 int, b Batch, fn BlockFunc) error {
	block, err := c.kernel.Similarity(m1.Slice(b.Start, b.End), m2)
	if err != nil {
		return fmt.Errorf("batch %d [%d, %d): %w", b.Index, b.Start, b.End, err)
	}
	if r, cols := block.Dims(); r != b.Rows() || cols != n2 {
		return fmt.Errorf("batch %d: kernel returned %dx%d block, want %dx%d", b.Index, r, cols, b.Rows(), n2)
	}
	if err := fn(b, block); err != nil {
		return fmt.Errorf("batch %d: %w", b.Index, err)
	}
	c.logger.Debug("similarity batch done",
		zap.Int("batch", b.Index),
		zap.Int("start", b.Start),
		zap.Int("end", b.End))
	return nil
}

func (c *Computer) notify(b Batch) {
	if c.onBatch != nil {
		c.onBatch(b)
	}
}
