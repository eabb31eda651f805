package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"gocloud.dev/blob"

	"github.com/ligustah/stacfetch/internal/config"
	"github.com/ligustah/stacfetch/internal/planner"
	"github.com/ligustah/stacfetch/internal/source"
	"github.com/ligustah/stacfetch/pkg/stacfetch"
)

func runProducts(args []string) int {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)

	bucket := fs.String("bucket", "", "Bucket URL holding the item documents")
	object := fs.String("object", "", "Item document key, or a prefix ending in / to read every .json under it (required)")
	separateDirs := fs.Bool("separate-dirs", false, "Place each product in its own subdirectory")
	productType := fs.String("product-type", "", "Comma-separated product types to keep, e.g. GEO,SLC")
	common := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: stacfetch products [options]

Download every product of an item collection, or of all documents under
a prefix.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	cfg, err := common.load(config.Config{
		Bucket:       *bucket,
		SeparateDirs: *separateDirs,
		ProductTypes: planner.SplitList(*productType),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	if cfg.Bucket == "" || *object == "" {
		fmt.Fprintln(os.Stderr, "Error: -bucket and -object are required")
		fs.Usage()
		return ExitInvalidArgs
	}

	s, err := newSession(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()

	items, err := loadProducts(ctx, cfg.Bucket, *object)
	if err != nil {
		return fail(err)
	}

	paths, err := s.client.DownloadProducts(ctx, items, s.productsOptions())
	printProductPaths(paths)
	if err != nil {
		return fail(err)
	}
	return ExitSuccess
}

func loadProducts(ctx context.Context, bucketURL, object string) ([]stacfetch.Item, error) {
	if !strings.HasSuffix(object, "/") {
		return stacfetch.LoadItems(ctx, bucketURL, object)
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	defer bucket.Close()

	return source.LoadAll(ctx, bucket, object)
}
