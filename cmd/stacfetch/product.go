package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/stacfetch/internal/config"
	"github.com/ligustah/stacfetch/pkg/stacfetch"
)

func runProduct(args []string) int {
	fs := flag.NewFlagSet("product", flag.ContinueOnError)

	bucket := fs.String("bucket", "", "Bucket URL holding the item document, e.g. file:///data or s3://orders")
	object := fs.String("object", "", "Item document key (required)")
	common := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: stacfetch product [options]

Download the assets of one product. The document may be a single item,
a one-item collection or a bare asset map.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	cfg, err := common.load(config.Config{Bucket: *bucket})
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

	return downloadProduct(ctx, s, cfg.Bucket, *object)
}

func downloadProduct(ctx context.Context, s *session, bucketURL, object string) int {
	items, err := stacfetch.LoadItems(ctx, bucketURL, object)
	if err != nil {
		return fail(err)
	}
	if len(items) != 1 {
		fmt.Fprintf(os.Stderr, "Error: %s holds %d items, use 'stacfetch products'\n", object, len(items))
		return ExitValidationFailed
	}

	paths, err := s.client.DownloadProduct(ctx, items[0].Assets, s.productOptions())
	printPaths(paths)
	if err != nil {
		return fail(err)
	}
	return ExitSuccess
}
