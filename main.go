package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"harvest/internal/config"
	"harvest/internal/formatter"
	"harvest/internal/logging"
	"harvest/internal/metrics"
	"harvest/internal/sites"
	_ "harvest/internal/sites/ditlep"
)

var version = "dev"

var (
	cfg          = config.DefaultConfig()
	outputFormat string
	outputFile   string
)

func main() {
	envErr := cfg.LoadEnv(nil)

	rootCmd := &cobra.Command{
		Use:     "harvest",
		Short:   "Harvest a paginated catalog through rendered browser sessions",
		Version: version,
		Long: `harvest discovers every entry of a paginated catalog listing, fetches
each entry's detail page with a bounded pool of browser sessions, and stores
the extracted records together with a duplicate report.`,
		Example: `  # Walk the listing and save the target list
  harvest discover

  # Scrape every saved target, keeping failures as placeholders
  harvest scrape --failure-policy placeholder

  # Scrape into SQLite, resuming through a Redis checkpoint
  harvest scrape --store sqlite://data/harvest.db --checkpoint-redis localhost:6379

  # Duplicate report of a record file as markdown
  harvest report json/dataResults.json -o report.md

  # Hatching time and gold income of one dragon
  harvest lookup "Lava Dragon"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			logging.Setup(logging.Config{
				Level:  logging.Level(cfg.LogLevel),
				Pretty: cfg.LogPretty,
				Output: os.Stderr,
			})
			if outputFile != "" && !cmd.Flags().Changed("format") {
				if inferred := formatter.InferFormat(outputFile); inferred != "" {
					outputFormat = inferred
				}
			}
			return validateFormat(outputFormat)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Catalog base URL")
	flags.StringVar(&cfg.Lang, "lang", cfg.Lang, "Catalog language code")
	flags.StringVar(&cfg.Site, "site", cfg.Site, "Site profile ("+strings.Join(sites.Names(), ", ")+")")
	flags.StringVar(&cfg.Engine, "engine", cfg.Engine, "Session engine: rod (rendered) or static")
	flags.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the browser headless")
	flags.StringVarP(&cfg.ProxyURL, "proxy", "p", cfg.ProxyURL, "Proxy URL (e.g. http://127.0.0.1:7890)")
	flags.DurationVarP(&cfg.NavigationTimeout, "timeout", "t", cfg.NavigationTimeout, "Navigation timeout per page")
	flags.StringSliceVar(&cfg.BlockedResourceTypes, "block", cfg.BlockedResourceTypes, "Resource types aborted in every session")
	flags.StringVar(&cfg.Store, "store", cfg.Store, "Store: json (default), sqlite://path or postgres://dsn")
	flags.StringVar(&cfg.TargetsFile, "targets-file", cfg.TargetsFile, "Targets file of the json store")
	flags.StringVar(&cfg.RecordsFile, "records-file", cfg.RecordsFile, "Records file of the json store")
	flags.StringVar(&cfg.DedupKeys, "dedup-keys", cfg.DedupKeys, "Duplicate keying of list fields: coarse or canonical")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "Human-readable logs instead of JSON")
	flags.StringVarP(&outputFormat, "format", "f", "text", "Output format ("+strings.Join(formatter.Formats, ", ")+")")
	flags.StringVarP(&outputFile, "output", "o", "", "Output file path (format inferred from extension if -f not specified)")

	rootCmd.AddCommand(discoverCmd(), scrapeCmd(), reportCmd(), lookupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// serveMetrics starts the metrics endpoint when configured and returns its
// shutdown function.
func serveMetrics(m *metrics.Metrics, logger zerolog.Logger) func() {
	if cfg.MetricsAddr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}
}

func validateFormat(format string) error {
	for _, f := range formatter.Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("invalid output format: %s", format)
}

// emit writes rendered content to the output file or stdout.
func emit(content formatter.Content) error {
	out, err := formatter.Format(content, outputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(out), 0o644); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Output written to: %s\n", outputFile)
		return nil
	}
	fmt.Println(out)
	return nil
}
