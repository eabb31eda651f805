package stacfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gocloud.dev/blob"

	"github.com/ligustah/stacfetch/internal/asset"
	"github.com/ligustah/stacfetch/internal/downloader"
	stachttp "github.com/ligustah/stacfetch/internal/http"
	"github.com/ligustah/stacfetch/internal/logging"
	"github.com/ligustah/stacfetch/internal/metrics"
	"github.com/ligustah/stacfetch/internal/planner"
	"github.com/ligustah/stacfetch/internal/progress"
	"github.com/ligustah/stacfetch/internal/retry"
	"github.com/ligustah/stacfetch/internal/source"
	"github.com/ligustah/stacfetch/internal/transfer"
)

// Item, Assets and Asset describe presigned products.
type (
	Item   = asset.Item
	Assets = asset.Assets
	Asset  = asset.Asset
)

// TransferError is returned for a failed asset transfer.
type TransferError = transfer.Error

// BatchError is returned by threaded downloads when one or more transfers fail.
type BatchError = downloader.BatchError

// Errors returned by the client. Match them with errors.Is.
var (
	ErrConfiguration = planner.ErrConfiguration
	ErrValidation    = planner.ErrValidation
	ErrNotFound      = source.ErrNotFound
)

// assetKey is the key used for single-asset downloads.
const assetKey = "asset"

// Options configures a Client.
type Options struct {
	// Timeout bounds connection setup and the wait for response headers.
	// Default: 30s
	Timeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string

	// BufferSize is the streaming chunk size in bytes.
	// Default: 1MiB
	BufferSize int

	// RetryAttempts bounds the attempts per transfer. Zero retries transient
	// failures until the context is done.
	RetryAttempts int

	// RetryBackoff is the first backoff delay.
	// Default: 2s
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the backoff delay.
	// Default: 16s
	RetryMaxBackoff time.Duration

	// Concurrency caps concurrent transfers of threaded downloads. Zero runs
	// one transfer per asset.
	Concurrency int

	// Logger receives download events. Default: discard.
	Logger *slog.Logger

	// Registerer, when set, receives the transfer metrics.
	Registerer prometheus.Registerer

	// ProgressOutput is where progress bars are drawn.
	// Default: os.Stderr
	ProgressOutput io.Writer

	// sleep replaces the backoff timer in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// AssetOptions configures DownloadAsset.
type AssetOptions struct {
	// LocalPath is the destination file, or an existing directory to place
	// the file in. Empty uses the system temp directory.
	LocalPath    string
	Override     bool
	ShowProgress bool
	Resume       bool
}

// ProductOptions configures DownloadProduct.
type ProductOptions struct {
	// LocalDir must exist. Empty uses the system temp directory.
	LocalDir string

	// Include and Exclude filter asset keys; "raster" stands for HH and VV.
	Include []string
	Exclude []string

	Override     bool
	Threaded     bool
	ShowProgress bool
	Resume       bool
}

// ProductsOptions configures DownloadProducts and DownloadOrder.
type ProductsOptions struct {
	ProductOptions

	// SeparateDirs places each product under LocalDir/<product id>.
	SeparateDirs bool

	// ProductTypes keeps only items with a matching sar:product_type.
	ProductTypes []string
}

// Resolver looks up the items of an order, tasking request or collect.
type Resolver interface {
	Resolve(ctx context.Context, id string) ([]Item, error)
}

// Client downloads presigned assets.
type Client struct {
	coordinator *downloader.Coordinator
	reporter    *progress.Reporter
	logger      *slog.Logger
}

// New creates a Client. Call Close when done to stop the progress renderer.
func New(opts Options) (*Client, error) {
	logger := logging.OrDiscard(opts.Logger)

	var m *metrics.Metrics
	if opts.Registerer != nil {
		var err error
		m, err = metrics.New(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("stacfetch: register metrics: %w", err)
		}
	}

	httpOpts := stachttp.DefaultOptions()
	if opts.Timeout > 0 {
		httpOpts.Timeout = opts.Timeout
	}
	httpOpts.UserAgent = opts.UserAgent

	policy := retry.Default()
	if opts.RetryBackoff > 0 {
		policy.Base = opts.RetryBackoff
	}
	if opts.RetryMaxBackoff > 0 {
		policy.Max = opts.RetryMaxBackoff
	}
	policy.MaxAttempts = opts.RetryAttempts
	policy.Sleep = opts.sleep

	exec := transfer.New(stachttp.NewClient(httpOpts), policy,
		transfer.WithLogger(logger),
		transfer.WithMetrics(m),
		transfer.WithBufferSize(opts.BufferSize),
	)

	reporter := progress.NewReporter(progress.Options{Output: opts.ProgressOutput})

	return &Client{
		coordinator: downloader.New(exec, downloader.Options{
			Concurrency: opts.Concurrency,
			Progress:    reporter,
			Logger:      logger,
		}),
		reporter: reporter,
		logger:   logger,
	}, nil
}

// Close stops the progress renderer. The client must not be used afterwards.
func (c *Client) Close() {
	c.reporter.Close()
}

// DownloadAsset downloads one presigned URL and returns the local path.
func (c *Client) DownloadAsset(ctx context.Context, url string, opts AssetOptions) (string, error) {
	dest := opts.LocalPath
	if dest != "" {
		fi, err := os.Stat(dest)
		switch {
		case err == nil && fi.IsDir():
			name, err := asset.FilenameFromURL(url)
			if err != nil {
				return "", fmt.Errorf("%w: %w", ErrValidation, err)
			}
			dest = filepath.Join(dest, name)
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	req := &asset.Request{URL: url, Destination: dest, Key: assetKey}
	paths, err := c.coordinator.Run(ctx, []*asset.Request{req}, downloader.BatchOptions{
		Override:     opts.Override,
		ShowProgress: opts.ShowProgress,
		Resume:       opts.Resume,
	})
	if err != nil {
		return "", err
	}
	return paths[assetKey], nil
}

// DownloadProduct downloads the assets of one product and returns the local
// paths keyed by asset key.
func (c *Client) DownloadProduct(ctx context.Context, assets Assets, opts ProductOptions) (map[string]string, error) {
	reqs, err := planner.Plan(assets, localDir(opts.LocalDir), planner.Options{
		Include: opts.Include,
		Exclude: opts.Exclude,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, err
	}
	return c.coordinator.Run(ctx, reqs, batchOptions(opts))
}

// DownloadProducts downloads several products and returns the local paths
// keyed by product id, then asset key.
func (c *Client) DownloadProducts(ctx context.Context, items []Item, opts ProductsOptions) (map[string]map[string]string, error) {
	selected := asset.FilterByProductType(items, opts.ProductTypes)
	if len(selected) < len(items) {
		c.logger.Info("filtered items by product type",
			"kept", len(selected), "total", len(items), "product_types", opts.ProductTypes)
	}

	reqs, err := planner.PlanItems(selected, localDir(opts.LocalDir), planner.Options{
		Include:      opts.Include,
		Exclude:      opts.Exclude,
		SeparateDirs: opts.SeparateDirs,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, err
	}
	return c.coordinator.RunProducts(ctx, reqs, batchOptions(opts.ProductOptions))
}

// DownloadOrder resolves id with r and downloads the resulting products.
func (c *Client) DownloadOrder(ctx context.Context, r Resolver, id string, opts ProductsOptions) (map[string]map[string]string, error) {
	items, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	c.logger.Info("resolved order", "id", id, "items", len(items))
	return c.DownloadProducts(ctx, items, opts)
}

// LoadItems reads an item document from key in the bucket at bucketURL.
func LoadItems(ctx context.Context, bucketURL, key string) ([]Item, error) {
	return source.Load(ctx, bucketURL, key)
}

// BucketResolver returns a Resolver reading <prefix><id>.json from bucket.
func BucketResolver(bucket *blob.Bucket, prefix string) Resolver {
	return &source.Resolver{Bucket: bucket, Prefix: prefix}
}

func localDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}

func batchOptions(opts ProductOptions) downloader.BatchOptions {
	return downloader.BatchOptions{
		Override:     opts.Override,
		Threaded:     opts.Threaded,
		ShowProgress: opts.ShowProgress,
		Resume:       opts.Resume,
	}
}
