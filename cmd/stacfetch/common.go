package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/ligustah/stacfetch/internal/config"
	stachttp "github.com/ligustah/stacfetch/internal/http"
	"github.com/ligustah/stacfetch/internal/logging"
	"github.com/ligustah/stacfetch/internal/planner"
	"github.com/ligustah/stacfetch/internal/source"
	"github.com/ligustah/stacfetch/pkg/stacfetch"
)

// commonFlags are shared by every download command.
type commonFlags struct {
	fs          *flag.FlagSet
	output      *string
	include     *string
	exclude     *string
	workers     *int
	override    *bool
	threaded    *bool
	progress    *bool
	resume      *bool
	configPath  *string
	logLevel    *string
	metricsFile *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		fs:          fs,
		output:      fs.String("output", "", "Output directory (default: system temp dir)"),
		include:     fs.String("include", "", "Comma-separated asset keys to download; 'raster' means HH,VV"),
		exclude:     fs.String("exclude", "", "Comma-separated asset keys to skip; wins over -include"),
		workers:     fs.Int("workers", 0, "Max concurrent transfers with -threaded (0: one per asset)"),
		override:    fs.Bool("override", false, "Download again even if the file exists"),
		threaded:    fs.Bool("threaded", false, "Download assets concurrently"),
		progress:    fs.Bool("progress", false, "Show progress bars when stderr is a terminal"),
		resume:      fs.Bool("resume", false, "Resume partial files with range requests"),
		configPath:  fs.String("config", "", "YAML configuration file"),
		logLevel:    fs.String("log-level", "", "Log level: debug, info, warn, error"),
		metricsFile: fs.String("metrics-file", "", "Write Prometheus metrics to this file on exit"),
	}
}

// load builds the effective configuration: defaults, config file, .env,
// environment, then flags.
func (f *commonFlags) load(extra config.Config) (config.Config, error) {
	cfg := config.Default()
	if *f.configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*f.configPath)
		if err != nil {
			return config.Config{}, err
		}
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	extra.OutputDir = *f.output
	extra.Include = planner.SplitList(*f.include)
	extra.Exclude = planner.SplitList(*f.exclude)
	extra.Workers = *f.workers
	extra.Override = *f.override
	extra.Threaded = *f.threaded
	extra.Progress = *f.progress
	extra.Resume = *f.resume
	extra.LogLevel = *f.logLevel
	extra.MetricsFile = *f.metricsFile
	cfg = cfg.Merge(extra)
	applyBoolFlags(f.fs, &cfg)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// applyBoolFlags copies boolean flags given on the command line into cfg.
// Merge ignores false values, so -threaded=false would otherwise be lost.
func applyBoolFlags(fs *flag.FlagSet, cfg *config.Config) {
	targets := map[string]*bool{
		"override":      &cfg.Override,
		"threaded":      &cfg.Threaded,
		"progress":      &cfg.Progress,
		"resume":        &cfg.Resume,
		"separate-dirs": &cfg.SeparateDirs,
	}
	fs.Visit(func(fl *flag.Flag) {
		field, ok := targets[fl.Name]
		if !ok {
			return
		}
		if g, ok := fl.Value.(flag.Getter); ok {
			if v, ok := g.Get().(bool); ok {
				*field = v
			}
		}
	})
}

// session holds what a command needs to download.
type session struct {
	cfg          config.Config
	client       *stacfetch.Client
	logger       *slog.Logger
	registry     *prometheus.Registry
	showProgress bool
}

func newSession(cfg config.Config) (*session, error) {
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel), logging.Format(cfg.LogFormat))

	s := &session{
		cfg:          cfg,
		logger:       logger,
		showProgress: cfg.Progress && term.IsTerminal(int(os.Stderr.Fd())),
	}
	if cfg.Progress && !s.showProgress {
		logger.Debug("stderr is not a terminal, progress bars disabled")
	}

	opts := stacfetch.Options{
		Timeout:         cfg.Timeout,
		UserAgent:       "stacfetch/" + version,
		BufferSize:      int(cfg.BufferSize),
		RetryAttempts:   cfg.Retry.Attempts,
		RetryBackoff:    cfg.Retry.Backoff,
		RetryMaxBackoff: cfg.Retry.MaxBackoff,
		Concurrency:     cfg.Workers,
		Logger:          logger,
		ProgressOutput:  os.Stderr,
	}
	if cfg.MetricsFile != "" {
		s.registry = prometheus.NewRegistry()
		opts.Registerer = s.registry
	}

	client, err := stacfetch.New(opts)
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

// close stops the client and writes the metrics file.
func (s *session) close() {
	s.client.Close()
	if s.registry == nil {
		return
	}
	if err := prometheus.WriteToTextfile(s.cfg.MetricsFile, s.registry); err != nil {
		s.logger.Error("write metrics file", "path", s.cfg.MetricsFile, "error", err)
	}
}

func (s *session) productOptions() stacfetch.ProductOptions {
	return stacfetch.ProductOptions{
		LocalDir:     s.cfg.OutputDir,
		Include:      s.cfg.Include,
		Exclude:      s.cfg.Exclude,
		Override:     s.cfg.Override,
		Threaded:     s.cfg.Threaded,
		ShowProgress: s.showProgress,
		Resume:       s.cfg.Resume,
	}
}

func (s *session) productsOptions() stacfetch.ProductsOptions {
	return stacfetch.ProductsOptions{
		ProductOptions: s.productOptions(),
		SeparateDirs:   s.cfg.SeparateDirs,
		ProductTypes:   s.cfg.ProductTypes,
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[stacfetch] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// exitCode maps a download error onto the exit code table.
func exitCode(err error) int {
	var (
		statusErr  *stachttp.StatusError
		connectErr *stachttp.ConnectError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, planner.ErrConfiguration):
		return ExitConfigError
	case errors.Is(err, planner.ErrValidation):
		return ExitValidationFailed
	case errors.Is(err, source.ErrNotFound), errors.Is(err, source.ErrFormat):
		return ExitStorageError
	case errors.As(err, &statusErr) && !statusErr.Temporary():
		return ExitSourceNotAccess
	case errors.As(err, &connectErr):
		return ExitSourceNotAccess
	default:
		return ExitGeneralError
	}
}

// fail reports err and returns its exit code.
func fail(err error) int {
	code := exitCode(err)
	if code == ExitInterrupted {
		fmt.Fprintln(os.Stderr, "[stacfetch] Interrupted, run again with -resume to continue")
		return code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return code
}

func printPaths(paths map[string]string) {
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(stdout, "%s\t%s\n", k, paths[k])
	}
}

func printProductPaths(paths map[string]map[string]string) {
	ids := make([]string, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		keys := make([]string, 0, len(paths[id]))
		for k := range paths[id] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", id, k, paths[id][k])
		}
	}
}
