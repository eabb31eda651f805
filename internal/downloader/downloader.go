package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ligustah/stacfetch/internal/asset"
	"github.com/ligustah/stacfetch/internal/logging"
	"github.com/ligustah/stacfetch/internal/progress"
	"github.com/ligustah/stacfetch/internal/transfer"
)

// Transferer performs a single asset transfer.
type Transferer interface {
	Transfer(ctx context.Context, req *asset.Request, opts transfer.Options) (transfer.Outcome, error)
}

// Options configures the coordinator.
type Options struct {
	// Concurrency caps the number of transfers running at once in threaded
	// mode. Zero runs one goroutine per request.
	Concurrency int

	// Progress is the shared progress surface. It is flushed before every
	// batch and only receives updates when a batch asks for progress.
	Progress *progress.Reporter

	// Logger receives batch lifecycle events.
	Logger *slog.Logger
}

// BatchOptions configures a single batch.
type BatchOptions struct {
	Override     bool
	Threaded     bool
	ShowProgress bool
	Resume       bool
}

// FailedTransfer records a request that did not complete.
type FailedTransfer struct {
	Key       string
	ProductID string
	Err       error
}

// BatchError is returned by threaded batches when one or more transfers fail.
// The other transfers of the batch run to completion.
//
// Use errors.As to extract it and inspect Failed; errors.Is matches against
// every underlying failure.
type BatchError struct {
	Total  int
	Failed []FailedTransfer
}

func (e *BatchError) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		msgs = append(msgs, f.Err.Error())
	}
	return fmt.Sprintf("%d of %d transfers failed: %s", len(e.Failed), e.Total, strings.Join(msgs, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Coordinator schedules batches of requests over a Transferer.
type Coordinator struct {
	transferer Transferer
	opts       Options
	logger     *slog.Logger
}

// New creates a Coordinator.
func New(t Transferer, opts Options) *Coordinator {
	if opts.Concurrency < 0 {
		opts.Concurrency = 0
	}
	return &Coordinator{
		transferer: t,
		opts:       opts,
		logger:     logging.OrDiscard(opts.Logger),
	}
}

// Run transfers one product's requests and returns the local path of every
// completed asset keyed by asset key. On failure the map still holds the
// transfers that completed.
func (c *Coordinator) Run(ctx context.Context, reqs []*asset.Request, opts BatchOptions) (map[string]string, error) {
	outcomes, err := c.run(ctx, reqs, opts)
	paths := make(map[string]string, len(outcomes))
	for _, o := range outcomes {
		paths[o.Key] = o.Path
	}
	return paths, err
}

// RunProducts transfers requests spanning several products and returns the
// local paths keyed by product id, then asset key.
func (c *Coordinator) RunProducts(ctx context.Context, reqs []*asset.Request, opts BatchOptions) (map[string]map[string]string, error) {
	outcomes, err := c.run(ctx, reqs, opts)
	paths := make(map[string]map[string]string)
	for _, o := range outcomes {
		byKey, ok := paths[o.ProductID]
		if !ok {
			byKey = make(map[string]string)
			paths[o.ProductID] = byKey
		}
		byKey[o.Key] = o.Path
	}
	return paths, err
}

// run executes a batch and returns the outcomes of the completed transfers
// in request order.
func (c *Coordinator) run(ctx context.Context, reqs []*asset.Request, opts BatchOptions) ([]transfer.Outcome, error) {
	c.opts.Progress.Flush()

	log := c.logger.With("batch", uuid.NewString())
	if len(reqs) == 0 {
		log.Info("nothing to download")
		return nil, nil
	}

	topts := transfer.Options{Override: opts.Override, Resume: opts.Resume}
	if opts.ShowProgress {
		topts.Progress = c.opts.Progress
	}

	mode := "serial"
	if opts.Threaded {
		mode = "threaded"
	}
	log.Info("starting batch", "files", len(reqs), "mode", mode, "override", opts.Override, "resume", opts.Resume)

	started := time.Now()
	var (
		outcomes []transfer.Outcome
		err      error
	)
	if opts.Threaded {
		outcomes, err = c.runThreaded(ctx, reqs, topts)
	} else {
		outcomes, err = c.runSerial(ctx, reqs, topts)
	}

	var bytes int64
	skipped := 0
	for _, o := range outcomes {
		if o.Skipped {
			skipped++
			continue
		}
		bytes += o.Size
	}

	attrs := []any{
		"files", len(outcomes),
		"skipped", skipped,
		"bytes", bytes,
		"size", progress.FormatBytes(bytes),
		"duration", time.Since(started).Round(time.Millisecond),
	}
	if err != nil {
		log.Error("batch failed", append(attrs, "error", err)...)
		return outcomes, err
	}
	log.Info("batch complete", attrs...)
	return outcomes, nil
}

// runSerial transfers reqs in order and stops at the first failure.
func (c *Coordinator) runSerial(ctx context.Context, reqs []*asset.Request, opts transfer.Options) ([]transfer.Outcome, error) {
	outcomes := make([]transfer.Outcome, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		out, err := c.transferer.Transfer(ctx, req, opts)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// runThreaded transfers reqs concurrently. A failure never cancels the
// remaining transfers; all failures are reported together.
func (c *Coordinator) runThreaded(ctx context.Context, reqs []*asset.Request, opts transfer.Options) ([]transfer.Outcome, error) {
	var g errgroup.Group
	if c.opts.Concurrency > 0 {
		g.SetLimit(c.opts.Concurrency)
	}

	results := make([]transfer.Outcome, len(reqs))
	done := make([]bool, len(reqs))

	var (
		mu     sync.Mutex
		failed []FailedTransfer
	)

	for i, req := range reqs {
		g.Go(func() error {
			out, err := c.transferer.Transfer(ctx, req, opts)
			if err != nil {
				mu.Lock()
				failed = append(failed, FailedTransfer{Key: req.Key, ProductID: req.ProductID, Err: err})
				mu.Unlock()
				return nil
			}
			results[i] = out
			done[i] = true
			return nil
		})
	}
	g.Wait()

	outcomes := make([]transfer.Outcome, 0, len(reqs))
	for i, ok := range done {
		if ok {
			outcomes = append(outcomes, results[i])
		}
	}
	if len(failed) > 0 {
		return outcomes, &BatchError{Total: len(reqs), Failed: failed}
	}
	return outcomes, nil
}
