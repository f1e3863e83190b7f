package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"harvest/internal/checkpoint"
	"harvest/internal/dedup"
	"harvest/internal/formatter"
	"harvest/internal/harvest"
	"harvest/internal/logging"
	"harvest/internal/lookup"
	"harvest/internal/metrics"
	"harvest/internal/models"
	"harvest/internal/store"
)

// openStore opens the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store, store.Files{Targets: cfg.TargetsFile, Records: cfg.RecordsFile})
}

// withRunner validates the configuration, starts the engine and store, and
// hands a ready runner to fn. Everything is released when fn returns.
func withRunner(ctx context.Context, fn func(*harvest.Runner) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.NewLogger("harvest")
	m := metrics.New()
	stopMetrics := serveMetrics(m, logger)
	defer stopMetrics()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := harvest.OpenEngine(cfg, logging.NewLogger("browser"))
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn().Err(err).Msg("close engine")
		}
	}()

	runner, err := harvest.NewRunner(cfg, engine, st, logger, m)
	if err != nil {
		return err
	}
	return fn(runner)
}

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Walk the catalog listing and save the target list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return withRunner(ctx, func(r *harvest.Runner) error {
				targets, err := r.Discover(ctx)
				fmt.Fprintf(cmd.ErrOrStderr(), "Discovered %d targets\n", len(targets))
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&cfg.SettleDelay, "settle", cfg.SettleDelay, "Wait after clicking the next-page control")
	cmd.Flags().DurationVar(&cfg.NextControlWait, "next-wait", cfg.NextControlWait, "Bound on waiting for the next-page control to reappear")
	cmd.Flags().IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "Max pages to paginate (-1 for no limit)")
	return cmd
}

func scrapeCmd() *cobra.Command {
	var useCheckpoint bool
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch every saved target and store the extracted records",
		Long: `scrape loads the target list (objects or plain names), fetches each detail
page in sequential batches, numbers the records, and saves them even when the
run aborts. The duplicate report is written to stdout or --output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return withRunner(ctx, func(r *harvest.Runner) error {
				if useCheckpoint || cfg.CheckpointRedisAddr != "" {
					cp, err := openCheckpoint(ctx)
					if err != nil {
						return err
					}
					defer cp.Close()
					r.Checkpoint = cp
				}

				res, runErr := r.Scrape(ctx)
				fmt.Fprintf(cmd.ErrOrStderr(), "Records: %d of %d targets (run %s)\n", len(res.Records), res.Targets, res.RunID)
				if res.RunID != "" {
					if err := emit(formatter.NewReportContent(res.Report, len(res.Records))); err != nil {
						return errors.Join(runErr, err)
					}
				}
				return runErr
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Targets per batch")
	f.IntVarP(&cfg.Concurrency, "concurrency", "c", cfg.Concurrency, "Sessions working in parallel")
	f.DurationVar(&cfg.InterBatchDelay, "batch-delay", cfg.InterBatchDelay, "Pause between batches")
	f.StringVar(&cfg.FailurePolicy, "failure-policy", cfg.FailurePolicy, "Failed targets: drop or placeholder")
	f.BoolVar(&useCheckpoint, "checkpoint", false, "Skip targets completed earlier in this process or in Redis")
	f.IntVar(&cfg.CheckpointSize, "checkpoint-size", cfg.CheckpointSize, "In-process checkpoint entries")
	f.StringVar(&cfg.CheckpointRedisAddr, "checkpoint-redis", cfg.CheckpointRedisAddr, "Redis address backing the checkpoint")
	f.DurationVar(&cfg.CheckpointTTL, "checkpoint-ttl", cfg.CheckpointTTL, "Lifetime of checkpoint entries in Redis")
	return cmd
}

func openCheckpoint(ctx context.Context) (*checkpoint.Checkpoint, error) {
	opts := checkpoint.Options{
		Size:      cfg.CheckpointSize,
		Namespace: cfg.Site + ":" + cfg.Lang,
		TTL:       cfg.CheckpointTTL,
	}
	if cfg.CheckpointRedisAddr != "" {
		client, err := checkpoint.Dial(ctx, cfg.CheckpointRedisAddr)
		if err != nil {
			return nil, err
		}
		opts.Redis = client
	}
	return checkpoint.New(opts)
}

// loadRecords reads a record file when path is set, else the store's latest run.
func loadRecords(ctx context.Context, path string) ([]models.Record, error) {
	if path != "" {
		return store.ReadRecordsFile(path)
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.LoadRecords(ctx)
}

func reportCmd() *cobra.Command {
	var showRecords bool
	cmd := &cobra.Command{
		Use:   "report [records.json]",
		Short: "Print the duplicate report of a record set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keying, err := dedup.ParseKeying(cfg.DedupKeys)
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			records, err := loadRecords(cmd.Context(), path)
			if err != nil {
				return err
			}
			if showRecords {
				return emit(formatter.NewRecordsContent(records))
			}
			return emit(formatter.NewReportContent(dedup.Build(records, keying), len(records)))
		},
	}
	cmd.Flags().BoolVar(&showRecords, "records", false, "Render the records instead of the duplicate report")
	return cmd
}

func lookupCmd() *cobra.Command {
	var recordsPath string
	cmd := &cobra.Command{
		Use:   "lookup NAME",
		Short: "Show the first hatching time and gold per level of one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(cmd.Context(), recordsPath)
			if err != nil {
				return err
			}
			idx := lookup.NewIndex(records)
			name := args[0]
			if _, ok := idx.Record(name); !ok {
				return fmt.Errorf("no record named %q", name)
			}

			out := cmd.OutOrStdout()
			first := idx.FirstHatchingTime(name)
			if first == "" {
				first = models.HatchingNotFound
			}
			fmt.Fprintf(out, "Hatching time: %s\n", first)
			if gold := idx.GoldPerLevel(name); len(gold) > 0 {
				fmt.Fprintf(out, "Gold per level:\n  %s\n", strings.Join(gold, "\n  "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordsPath, "records", "", "Record file to search instead of the store")
	return cmd
}
