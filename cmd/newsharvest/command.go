package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"newsharvest/pkg/config"
	"newsharvest/pkg/harvest"
	"newsharvest/pkg/logging"
	"newsharvest/pkg/news"
	"newsharvest/pkg/news/alpaca"
	"newsharvest/pkg/news/eikon"
	"newsharvest/pkg/query"
	"newsharvest/pkg/store"
)

const (
	defaultQuery = "grains AND tender AND (GASC OR Tunisia OR Algeria)"
	defaultFrom  = "2022-01-01T00:00:00"
	defaultTo    = "2024-02-07T10:46:00"
	defaultOut   = "tender_reuters_articles_new.csv"
)

type options struct {
	configFile     string
	provider       string
	query          string
	from           string
	to             string
	count          int
	out            string
	resume         bool
	logDir         string
	logLevel       string
	authRetryDelay time.Duration
	dumpDir        string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "newsharvest",
		Short: "Harvest wire stories for a news query into a CSV file",
		Long: `newsharvest searches a news provider for a fixed query, walks backwards
through the date range one batch at a time, cleans every story down to its
reporter-written body and appends the rows to a CSV file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", ".env", "key-value file with provider credentials")
	flags.StringVar(&opts.provider, "provider", "", "news provider: eikon or alpaca (default from NEWS_PROVIDER, else eikon)")
	flags.StringVar(&opts.query, "query", defaultQuery, "news search expression")
	flags.StringVar(&opts.from, "from", defaultFrom, "oldest timestamp to search (UTC)")
	flags.StringVar(&opts.to, "to", defaultTo, "newest timestamp to search (UTC)")
	flags.IntVar(&opts.count, "count", harvest.DefaultLimit, "headlines per search call")
	flags.StringVar(&opts.out, "out", defaultOut, "output CSV file")
	flags.BoolVar(&opts.resume, "resume", false, "keep an existing output file and continue below its oldest row")
	flags.StringVar(&opts.logDir, "log-dir", "log", "directory for the per-run debug log (empty disables it)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "console log level")
	flags.DurationVar(&opts.authRetryDelay, "auth-retry-delay", harvest.DefaultAuthRetryDelay, "wait before retrying a failed provider login")
	flags.StringVar(&opts.dumpDir, "dump-dir", "", "write pretty-printed eikon responses to this directory")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger, logPath, closeLog, err := logging.New(logging.Options{
		Dir:          opts.logDir,
		Name:         "newsharvest",
		ConsoleLevel: opts.logLevel,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	logger = logger.With(zap.String("run_id", uuid.NewString()))
	if logPath != "" {
		logger.Debug("Logging to file", zap.String("path", logPath))
	}

	if err := runWithLogger(ctx, opts, logger); err != nil {
		logger.Error("Harvest failed", zap.Error(err))
		return err
	}
	return nil
}

func runWithLogger(ctx context.Context, opts *options, logger *zap.Logger) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.configFile != "" && cfg.File == "" {
		logger.Warn("Config file not found, using environment only", zap.String("file", opts.configFile))
	}

	if opts.provider != "" {
		cfg.Provider = strings.ToLower(opts.provider)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	window, err := parseWindow(opts.from, opts.to)
	if err != nil {
		return err
	}

	provider, filter, err := newProvider(cfg, opts, logger)
	if err != nil {
		return err
	}

	if err := harvest.Authenticate(ctx, provider, opts.authRetryDelay, logger); err != nil {
		return err
	}

	sink := store.NewCSVSink(opts.out)
	window, err = prepareOutput(sink, window, opts.resume, logger)
	if err != nil {
		return err
	}

	h := harvest.New(provider, provider, sink, harvest.Options{
		Query:  opts.query,
		Limit:  opts.count,
		Filter: filter,
	}, logger)

	stats, err := h.Run(ctx, window)
	if err != nil {
		return err
	}

	logger.Info("Harvest finished",
		zap.String("out", opts.out),
		zap.Int("batches", stats.Batches),
		zap.Int("headlines", stats.Headlines),
		zap.Int("articles", stats.Articles),
	)
	return nil
}

// newProvider returns the configured provider and, for providers that cannot
// search by keyword, the query compiled into a local headline filter.
func newProvider(cfg *config.Config, opts *options, logger *zap.Logger) (news.Provider, *query.Expr, error) {
	switch cfg.Provider {
	case config.ProviderEikon:
		client := eikon.NewClient(&eikon.Config{
			BaseURL: cfg.Eikon.URL,
			AppKey:  cfg.Eikon.AppKey,
			DumpDir: opts.dumpDir,
		}, logger.Named("eikon"))
		return client, nil, nil

	case config.ProviderAlpaca:
		filter, err := query.Parse(opts.query)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid query for alpaca filter: %w", err)
		}
		client := alpaca.NewClient(&alpaca.Config{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			BaseURL:   cfg.Alpaca.DataURL,
			Symbols:   cfg.Alpaca.Symbols,
		}, logger.Named("alpaca"))
		return client, filter, nil
	}

	return nil, nil, fmt.Errorf("unknown news provider %q", cfg.Provider)
}

// prepareOutput writes a fresh header, or with resume keeps the complete
// rows of the file and moves the window below the oldest of them.
func prepareOutput(sink *store.CSVSink, window news.Window, resume bool, logger *zap.Logger) (news.Window, error) {
	if resume {
		oldest, ok, err := sink.Resume()
		if err != nil {
			return window, err
		}
		if ok {
			resumed := harvest.NextWindow(window, []news.Headline{{Created: oldest}})
			if resumed.To.Before(window.To) {
				window = resumed
			}
			logger.Info("Resuming existing output",
				zap.String("file", sink.Path),
				zap.Time("oldest", oldest),
				zap.Time("to", window.To),
			)
			return window, nil
		}
	}

	if err := sink.Init(); err != nil {
		return window, err
	}
	return window, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

func parseWindow(from, to string) (news.Window, error) {
	start, err := parseTimestamp(from)
	if err != nil {
		return news.Window{}, fmt.Errorf("--from: %w", err)
	}
	end, err := parseTimestamp(to)
	if err != nil {
		return news.Window{}, fmt.Errorf("--to: %w", err)
	}
	if !end.After(start) {
		return news.Window{}, fmt.Errorf("--to %s must be after --from %s", to, from)
	}
	return news.Window{From: start, To: end}, nil
}
