package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"rightmove-scraper/config"
	"rightmove-scraper/models"
	"rightmove-scraper/scraper"
	"rightmove-scraper/scraper/rightmove"
	"rightmove-scraper/services"
	"rightmove-scraper/storage"
	"rightmove-scraper/utils"
)

type flags struct {
	out         string
	noOverwrite bool
	listings    string
	minimal     bool
	maxPages    int
	concurrency int
	skipFailed  bool
	backend     string
	store       string
	verbose     bool
	noReport    bool
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "rightmove-scraper [flags] <search-url>...",
		Short: "rightmove-scraper keeps a sorted snapshot of rental offers up to date.",
		Long: "rightmove-scraper walks one or more Rightmove rental search listings, scrapes\n" +
			"the offers that are not yet in the snapshot, drops the ones that are no longer\n" +
			"listed and writes the merged table sorted by availability date.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, f)
		},
	}

	fl := rootCmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "", "snapshot file to read and update (tsv store)")
	fl.BoolVar(&f.noOverwrite, "no-overwrite", false, "refuse to replace an existing snapshot")
	fl.StringVar(&f.listings, "listings", "", "YAML file with additional search URLs")
	fl.BoolVar(&f.minimal, "minimal", false, "only keep price, availability and location")
	fl.IntVar(&f.maxPages, "max-pages", 0, "stop after this many result pages per listing (0 = no limit)")
	fl.IntVar(&f.concurrency, "concurrency", 1, fmt.Sprintf("detail pages fetched at once (1-%d)", config.MaxWorkers))
	fl.BoolVar(&f.skipFailed, "skip-failed", false, "leave out offers whose page cannot be scraped instead of aborting")
	fl.StringVar(&f.backend, "backend", config.BackendHTTP, "fetch backend: http or browser")
	fl.StringVar(&f.store, "store", config.StoreTSV, "snapshot store: tsv or postgres")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log every scraped offer")
	fl.BoolVar(&f.noReport, "no-report", false, "do not print the summary tables")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string, f flags) error {
	ctx := cmd.Context()
	cfg := config.Load()
	applyFlags(cmd, cfg, f)

	level := utils.ParseLevel(cfg.LogLevel)
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := utils.NewLoggerTo(os.Stderr, level)

	if err := cfg.Validate(); err != nil {
		return err
	}

	urls, err := listingURLs(cfg, args)
	if err != nil {
		return err
	}

	mode := models.ModeMinimal
	if cfg.ExtendedFields {
		mode = models.ModeExtended
	}

	logger.Info("=== Rightmove scraper starting ===")
	logger.Info("Config: listings: %d | mode: %s | backend: %s | store: %s | concurrency: %d | rate: %dms",
		len(urls), mode, cfg.FetchBackend, cfg.SnapshotStore, cfg.MaxConcurrency, cfg.RateLimitMs)

	fetcher, closeFetcher := newFetcher(cfg, logger)
	defer closeFetcher()

	store, err := newStore(ctx, cfg, mode, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	paginator, err := rightmove.NewPaginator(fetcher, rightmove.PaginatorOptions{
		PageSize:   cfg.PageSize,
		MaxPages:   cfg.MaxPages,
		DetailPath: cfg.DetailPath,
		BaseURL:    cfg.BaseURL,
	}, logger)
	if err != nil {
		return err
	}

	pipeline := services.NewPipeline(paginator, fetcher, store, services.PipelineOptions{
		Mode:        mode,
		Concurrency: cfg.MaxConcurrency,
		SkipFailed:  cfg.SkipFailed,
		Overwrite:   cfg.Overwrite,
	}, logger)

	res, err := pipeline.Run(ctx, urls)
	if err != nil {
		if errors.Is(err, storage.ErrOutputExists) {
			logger.Error("Snapshot exists; rerun without --no-overwrite to update it")
		}
		return err
	}

	switch res.Status {
	case services.StatusNoNewOffers:
		logger.Info("No new offers since the last run")
	default:
		logger.Info("Snapshot updated: %d offers (%d new, %d dropped)", res.Table.Len(), res.Added, res.Dropped)
	}
	for _, failure := range res.Failed {
		logger.Warn("Not scraped: %s (%v)", failure.URL, failure.Err)
	}

	if !f.noReport {
		insights := services.NewInsightService(logger)
		insights.Print(os.Stdout, insights.Generate(res.Table, res, models.NewDate(time.Now())))
	}
	return nil
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	changed := cmd.Flags().Changed
	if changed("out") {
		cfg.OutputPath = f.out
	}
	if changed("no-overwrite") {
		cfg.Overwrite = !f.noOverwrite
	}
	if changed("listings") {
		cfg.ListingsFile = f.listings
	}
	if changed("minimal") {
		cfg.ExtendedFields = !f.minimal
	}
	if changed("max-pages") {
		cfg.MaxPages = f.maxPages
	}
	if changed("concurrency") {
		cfg.MaxConcurrency = f.concurrency
	}
	if changed("skip-failed") {
		cfg.SkipFailed = f.skipFailed
	}
	if changed("backend") {
		cfg.FetchBackend = f.backend
	}
	if changed("store") {
		cfg.SnapshotStore = f.store
	}
}

func listingURLs(cfg *config.Config, args []string) ([]string, error) {
	urls := append([]string(nil), args...)
	if cfg.ListingsFile != "" {
		listings, err := config.LoadListings(cfg.ListingsFile)
		if err != nil {
			return nil, err
		}
		for _, l := range listings {
			urls = append(urls, l.URL)
		}
	}
	if len(urls) == 0 {
		return nil, errors.New("no search URL given; pass one as an argument or use --listings")
	}
	return urls, nil
}

func newFetcher(cfg *config.Config, logger *utils.Logger) (scraper.Fetcher, func()) {
	pacer := utils.NewPacer(
		time.Duration(cfg.RateLimitMs)*time.Millisecond,
		time.Duration(cfg.RateJitterMs)*time.Millisecond,
	)

	if cfg.FetchBackend == config.BackendBrowser {
		b := scraper.NewBrowserFetcher(scraper.BrowserOptions{
			ChromeBin:  cfg.ChromeBin,
			UserAgent:  cfg.UserAgent,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
			Pacer:      pacer,
		}, logger)
		return b, func() { _ = b.Close() }
	}

	return scraper.NewHTTPFetcher(scraper.HTTPOptions{
		Timeout:    cfg.RequestTimeout,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Pacer:      pacer,
	}, logger), func() {}
}

func newStore(ctx context.Context, cfg *config.Config, mode models.Mode, logger *utils.Logger) (storage.SnapshotStore, error) {
	if cfg.SnapshotStore == config.StorePostgres {
		ps, err := storage.NewPostgresStore(ctx, cfg.DSN(), cfg.PostgresTable, mode, logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			return nil, err
		}
		return ps, nil
	}
	return storage.NewTSVStore(cfg.OutputPath, mode, logger), nil
}
