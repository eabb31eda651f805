package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/stacfetch/internal/config"
	"github.com/ligustah/stacfetch/pkg/stacfetch"
)

func runAsset(args []string) int {
	fs := flag.NewFlagSet("asset", flag.ContinueOnError)

	url := fs.String("url", "", "Presigned asset URL (required)")
	common := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: stacfetch asset [options]

Download a single presigned URL. -output may name a file or an existing
directory; in a directory the file keeps its remote name.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	if *url == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg, err := common.load(config.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	s, err := newSession(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()

	path, err := s.client.DownloadAsset(ctx, *url, stacfetch.AssetOptions{
		LocalPath:    cfg.OutputDir,
		Override:     cfg.Override,
		ShowProgress: s.showProgress,
		Resume:       cfg.Resume,
	})
	if err != nil {
		return fail(err)
	}

	fmt.Fprintln(stdout, path)
	return ExitSuccess
}

// parseExit maps a flag parse error to an exit code. -h is not an error.
func parseExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	return ExitInvalidArgs
}
