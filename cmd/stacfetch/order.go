package main

import (
	"flag"
	"fmt"
	"os"

	"gocloud.dev/blob"

	"github.com/ligustah/stacfetch/internal/config"
	"github.com/ligustah/stacfetch/internal/planner"
	"github.com/ligustah/stacfetch/pkg/stacfetch"
)

func runOrder(args []string) int {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)

	bucket := fs.String("bucket", "", "Bucket URL holding order documents")
	prefix := fs.String("prefix", "orders/", "Key prefix of order documents")
	id := fs.String("id", "", "Order, tasking request or collect id (required)")
	separateDirs := fs.Bool("separate-dirs", false, "Place each product in its own subdirectory")
	productType := fs.String("product-type", "", "Comma-separated product types to keep, e.g. GEO,SLC")
	common := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: stacfetch order [options]

Download the products stored for an id at <bucket>/<prefix><id>.json.

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

	if cfg.Bucket == "" || *id == "" {
		fmt.Fprintln(os.Stderr, "Error: -bucket and -id are required")
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

	b, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open bucket: %v\n", err)
		return ExitStorageError
	}
	defer b.Close()

	paths, err := s.client.DownloadOrder(ctx, stacfetch.BucketResolver(b, *prefix), *id, s.productsOptions())
	printProductPaths(paths)
	if err != nil {
		return fail(err)
	}
	return ExitSuccess
}
