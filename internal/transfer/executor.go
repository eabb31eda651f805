package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ligustah/stacfetch/internal/asset"
	stachttp "github.com/ligustah/stacfetch/internal/http"
	"github.com/ligustah/stacfetch/internal/logging"
	"github.com/ligustah/stacfetch/internal/metrics"
	"github.com/ligustah/stacfetch/internal/progress"
	"github.com/ligustah/stacfetch/internal/retry"
)

// DefaultBufferSize is the chunk size used when streaming bodies to disk.
const DefaultBufferSize = 1024 * 1024

// Fetcher issues the HTTP requests of a transfer.
type Fetcher interface {
	Head(ctx context.Context, url string) (*stachttp.FileInfo, error)
	Get(ctx context.Context, url string, offset int64) (*stachttp.Response, error)
}

// Options configures a single transfer.
type Options struct {
	// Override forces a full download even if the destination exists.
	Override bool

	// Resume continues partial files using ranged requests.
	Resume bool

	// Progress receives per-chunk updates when non-nil.
	Progress *progress.Reporter
}

// Outcome describes a finished transfer.
type Outcome struct {
	Key       string
	ProductID string
	Path      string
	Size      int64

	// Skipped is set when no bytes were fetched because the destination was
	// already complete.
	Skipped bool

	// Resumed is set when bytes were appended to an existing partial file.
	Resumed bool
}

// Error is returned when a transfer fails. URL is the original source URL;
// the message redacts its query string.
type Error struct {
	Key string
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer %s from %s: %v", e.Key, logging.RedactURL(e.URL), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Executor performs single asset transfers.
type Executor struct {
	client     Fetcher
	policy     retry.Policy
	metrics    *metrics.Metrics
	logger     *slog.Logger
	bufferSize int
	tempDir    string
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records transfer metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithBufferSize sets the streaming chunk size.
func WithBufferSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.bufferSize = n
		}
	}
}

// WithTempDir sets the directory used for requests without a destination.
// Default: os.TempDir()
func WithTempDir(dir string) Option {
	return func(e *Executor) { e.tempDir = dir }
}

// New creates an Executor. A policy without a Retryable predicate retries
// the transient HTTP failures reported by stachttp.IsRetryable.
func New(client Fetcher, policy retry.Policy, opts ...Option) *Executor {
	if policy.Retryable == nil {
		policy.Retryable = stachttp.IsRetryable
	}
	e := &Executor{
		client:     client,
		policy:     policy,
		bufferSize: DefaultBufferSize,
		tempDir:    os.TempDir(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	return e
}

// plan is the decision taken before any bytes are fetched.
type plan struct {
	skip   bool
	offset int64
	local  int64
	remote int64 // -1 when unknown
}

// fetchResult is the result of one fetch attempt.
type fetchResult struct {
	size     int64
	resumed  bool
	complete bool // 416: nothing was left to fetch
}

// Transfer downloads req to its destination and returns the outcome. An
// empty req.Destination is set to a file in the executor's temp directory.
func (e *Executor) Transfer(ctx context.Context, req *asset.Request, opts Options) (Outcome, error) {
	if req.Destination == "" {
		name, err := asset.FilenameFromURL(req.URL)
		if err != nil {
			return Outcome{}, &Error{Key: req.Key, URL: req.URL, Err: err}
		}
		req.Destination = filepath.Join(e.tempDir, name)
	}

	out := Outcome{Key: req.Key, ProductID: req.ProductID, Path: req.Destination}
	log := e.logger.With("key", req.Key, "path", req.Destination)

	started := time.Now()
	result := metrics.OutcomeFailed
	e.metrics.Started()
	defer func() { e.metrics.Finished(result, time.Since(started)) }()

	p, err := e.plan(ctx, req, opts, log)
	if err != nil {
		return out, &Error{Key: req.Key, URL: req.URL, Err: err}
	}
	if p.skip {
		result = metrics.OutcomeSkipped
		out.Size = p.local
		out.Skipped = true
		log.Info("asset already downloaded, skipping", "bytes", p.local)
		return out, nil
	}

	var task *progress.Task
	if opts.Progress != nil {
		total := p.remote
		if total < 0 {
			total = progress.UnknownTotal
		}
		task = opts.Progress.Add(filepath.Base(req.Destination), total)
	}

	policy := e.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.metrics.Retried()
		log.Warn("transient failure, retrying", "attempt", attempt, "delay", delay, "error", err)
		if e.policy.OnRetry != nil {
			e.policy.OnRetry(attempt, delay, err)
		}
	}

	var res fetchResult
	attempt := 0
	err = policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		offset := p.offset
		if attempt > 1 {
			offset = e.retryOffset(req.Destination, p, opts)
		}
		var ferr error
		res, ferr = e.fetch(ctx, req, offset, opts.Progress, task, log)
		return ferr
	})
	if err != nil {
		opts.Progress.Remove(task)
		return out, &Error{Key: req.Key, URL: req.URL, Err: err}
	}

	opts.Progress.Update(task, res.size)
	opts.Progress.Complete(task)

	out.Size = res.size
	switch {
	case res.complete:
		result = metrics.OutcomeSkipped
		out.Skipped = true
		log.Info("remote reports nothing left to fetch, treating as complete", "bytes", res.size)
	case res.resumed:
		result = metrics.OutcomeResumed
		out.Resumed = true
		log.Info("asset resumed", "bytes", res.size, "resumed_from", p.offset)
	default:
		result = metrics.OutcomeDownloaded
		log.Info("asset downloaded", "bytes", res.size)
	}
	return out, nil
}

// plan inspects the destination and, when resuming, the remote size.
func (e *Executor) plan(ctx context.Context, req *asset.Request, opts Options, log *slog.Logger) (plan, error) {
	fi, err := os.Stat(req.Destination)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return plan{}, fmt.Errorf("stat destination: %w", err)
	}
	if exists && fi.IsDir() {
		return plan{}, fmt.Errorf("destination %s is a directory", req.Destination)
	}

	var local int64
	if exists {
		local = fi.Size()
	}

	if opts.Override {
		return plan{remote: -1}, nil
	}
	if !opts.Resume {
		return plan{skip: exists, local: local, remote: -1}, nil
	}

	info, err := e.client.Head(ctx, req.URL)
	if ctx.Err() != nil {
		return plan{}, ctx.Err()
	}
	if err != nil || info.Size < 0 {
		// Resuming without a known target size is unsafe.
		log.Debug("remote size unknown, resume disabled", "error", err)
		return plan{skip: exists, local: local, remote: -1}, nil
	}

	remote := info.Size
	switch {
	case !exists:
		return plan{remote: remote}, nil
	case local == remote:
		return plan{skip: true, local: local, remote: remote}, nil
	case local > remote:
		log.Warn("local file larger than remote, downloading again", "local_bytes", local, "remote_bytes", remote)
		return plan{local: local, remote: remote}, nil
	default:
		log.Debug("partial file found", "local_bytes", local, "remote_bytes", remote)
		return plan{offset: local, local: local, remote: remote}, nil
	}
}

// retryOffset picks the start offset of a retried attempt. With resume
// enabled the bytes already on disk are a valid prefix and are kept.
func (e *Executor) retryOffset(dest string, p plan, opts Options) int64 {
	if !opts.Resume || opts.Override {
		return 0
	}
	fi, err := os.Stat(dest)
	if err != nil {
		return 0
	}
	if p.remote >= 0 && fi.Size() > p.remote {
		return 0
	}
	return fi.Size()
}

// fetch performs one GET and streams the body to the destination starting
// at offset.
func (e *Executor) fetch(ctx context.Context, req *asset.Request, offset int64, reporter *progress.Reporter, task *progress.Task, log *slog.Logger) (fetchResult, error) {
	resp, err := e.client.Get(ctx, req.URL, offset)
	if offset > 0 && errors.Is(err, stachttp.ErrRangeIgnored) {
		log.Warn("unusable range response, downloading from start", "error", err)
		return e.fetch(ctx, req, 0, reporter, task, log)
	}
	if err != nil {
		return fetchResult{}, err
	}
	defer resp.Body.Close()

	total := int64(-1)
	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return fetchResult{size: offset, complete: true}, nil
	case resp.StatusCode == http.StatusPartialContent:
		if resp.RangeStart != offset {
			if offset == 0 {
				return fetchResult{}, fmt.Errorf("%w: range starts at %d", stachttp.ErrRangeIgnored, resp.RangeStart)
			}
			resp.Body.Close()
			log.Warn("range response starts at wrong offset, downloading from start", "want", offset, "got", resp.RangeStart)
			return e.fetch(ctx, req, 0, reporter, task, log)
		}
		total = resp.RangeTotal
	default:
		if offset > 0 {
			log.Info("server ignored range, downloading from start", "offset", offset)
			offset = 0
		}
		total = resp.ContentLength
	}
	reporter.SetTotal(task, total)
	reporter.Update(task, offset)

	f, err := os.OpenFile(req.Destination, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fetchResult{}, fmt.Errorf("open destination: %w", err)
	}
	if err := f.Truncate(offset); err != nil {
		f.Close()
		return fetchResult{}, fmt.Errorf("truncate destination: %w", err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return fetchResult{}, fmt.Errorf("seek destination: %w", err)
	}

	n, copyErr := e.copy(f, resp.Body, offset, req.URL, func(done int64) {
		reporter.Update(task, done)
	})
	closeErr := f.Close()
	if copyErr != nil {
		return fetchResult{}, copyErr
	}
	if closeErr != nil {
		return fetchResult{}, fmt.Errorf("close destination: %w", closeErr)
	}

	return fetchResult{size: offset + n, resumed: offset > 0}, nil
}

// copy streams r into w chunk by chunk, reporting the cumulative byte count
// (base plus bytes written) after every chunk.
func (e *Executor) copy(w io.Writer, r io.Reader, base int64, url string, report func(int64)) (int64, error) {
	buf := make([]byte, e.bufferSize)
	var written int64
	for {
		nr, readErr := r.Read(buf)
		if nr > 0 {
			nw, writeErr := w.Write(buf[:nr])
			written += int64(nw)
			e.metrics.AddBytes(int64(nw))
			if writeErr != nil {
				return written, fmt.Errorf("write destination: %w", writeErr)
			}
			report(base + written)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, &stachttp.ConnectError{Op: "read", URL: logging.RedactURL(url), Err: readErr}
		}
	}
}
