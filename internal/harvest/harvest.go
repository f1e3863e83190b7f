// Package harvest wires discovery, scraping and reporting into runs.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"harvest/internal/aggregate"
	"harvest/internal/config"
	"harvest/internal/dedup"
	"harvest/internal/metrics"
	"harvest/internal/models"
	"harvest/internal/scheduler"
	"harvest/internal/session"
	"harvest/internal/sites"
	"harvest/internal/store"
	"harvest/internal/throttle"
	"harvest/internal/walker"
)

// Runner executes the harvest commands against one configuration.
type Runner struct {
	cfg     *config.Config
	site    sites.Site
	factory session.Factory
	store   store.Store
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// Checkpoint is optional.
	Checkpoint scheduler.Checkpoint
	// Sleep replaces wall-clock waits; tests set it to skip delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRunner(cfg *config.Config, factory session.Factory, st store.Store, logger zerolog.Logger, m *metrics.Metrics) (*Runner, error) {
	site, ok := sites.Get(cfg.Site)
	if !ok {
		return nil, fmt.Errorf("unknown site %q (known: %v)", cfg.Site, sites.Names())
	}
	return &Runner{cfg: cfg, site: site, factory: factory, store: st, logger: logger, metrics: m}, nil
}

// stageLogger tags l with a pipeline stage. The component field stays the
// runner's own.
func stageLogger(l zerolog.Logger, stage string) zerolog.Logger {
	return l.With().Str("stage", stage).Logger()
}

func (r *Runner) listing() sites.Options {
	return sites.Options{BaseURL: r.cfg.BaseURL, Lang: r.cfg.Lang}
}

// Discover walks the listing and saves the targets found, including a partial
// list when the walk fails.
func (r *Runner) Discover(ctx context.Context) ([]models.Target, error) {
	w := walker.New(r.factory, walker.Options{
		Site:              r.site,
		Listing:           r.listing(),
		NavigationTimeout: r.cfg.NavigationTimeout,
		SettleDelay:       r.cfg.SettleDelay,
		NextControlWait:   r.cfg.NextControlWait,
		MaxPages:          r.cfg.MaxPages,
		Logger:            stageLogger(r.logger, "walker"),
		Metrics:           r.metrics,
		Sleep:             r.Sleep,
	})

	targets, walkErr := w.Walk(ctx)
	if len(targets) > 0 || walkErr == nil {
		if err := r.store.SaveTargets(context.WithoutCancel(ctx), targets); err != nil {
			return targets, errors.Join(walkErr, fmt.Errorf("save targets: %w", err))
		}
		r.logger.Info().Int("targets", len(targets)).Msg("targets saved")
	}
	if walkErr != nil {
		return targets, fmt.Errorf("discover: %w", walkErr)
	}
	return targets, nil
}

// Result is the outcome of a scrape.
type Result struct {
	RunID   string
	Targets int
	Records []models.Record
	Report  dedup.Report
}

// Scrape fetches every stored target, numbers the results and saves them.
// Records gathered before a fatal error are saved too.
func (r *Runner) Scrape(ctx context.Context) (Result, error) {
	targets, err := r.store.LoadTargets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load targets: %w", err)
	}
	return r.ScrapeTargets(ctx, targets)
}

func (r *Runner) ScrapeTargets(ctx context.Context, targets []models.Target) (Result, error) {
	policy, err := scheduler.ParseFailurePolicy(r.cfg.FailurePolicy)
	if err != nil {
		return Result{}, err
	}
	keying, err := dedup.ParseKeying(r.cfg.DedupKeys)
	if err != nil {
		return Result{}, err
	}

	res := Result{RunID: store.NewRunID(), Targets: len(targets)}
	logger := r.logger.With().Str("run_id", res.RunID).Logger()
	logger.Info().Int("targets", len(targets)).Str("policy", string(policy)).Msg("scrape started")
	started := time.Now()

	barrier := throttle.NewBarrier(r.cfg.InterBatchDelay)
	if r.Sleep != nil {
		barrier.After = func(d time.Duration) <-chan time.Time {
			ch := make(chan time.Time, 1)
			_ = r.Sleep(ctx, d)
			ch <- time.Now()
			return ch
		}
	}

	s := scheduler.New(r.factory, scheduler.Options{
		Site:              r.site,
		Listing:           r.listing(),
		BatchSize:         r.cfg.BatchSize,
		Concurrency:       r.cfg.Concurrency,
		NavigationTimeout: r.cfg.NavigationTimeout,
		Policy:            policy,
		Barrier:           barrier,
		Checkpoint:        r.Checkpoint,
		Progress: func(p scheduler.Progress) {
			if !p.BatchDone {
				return
			}
			logger.Info().
				Int("batch", p.Batch).Int("batches", p.Batches).
				Int("succeeded", p.Succeeded).Int("failed", p.Failed).Int("total", p.Total).
				Msg("batch complete")
		},
		BatchDone: func(batch int, sofar []models.Fragment) {
			e := logger.Debug()
			if !e.Enabled() {
				return
			}
			report := dedup.Build(aggregate.New().Assemble(sofar), keying)
			e.Int("batch", batch).
				Strs("names", report.DuplicateNames).
				Strs("ids", report.DuplicateIDs).
				Strs("hatching_times", report.DuplicateHatchingTimes).
				Strs("image_urls", report.DuplicateImageURLs).
				Msg("duplicates so far")
		},
		Logger:  stageLogger(logger, "scheduler"),
		Metrics: r.metrics,
	})

	frags, runErr := s.Run(ctx, targets)
	res.Records = aggregate.New().Assemble(frags)
	res.Report = r.Report(res.Records, keying)

	if err := r.store.SaveRecords(context.WithoutCancel(ctx), res.RunID, res.Records); err != nil {
		return res, errors.Join(runErr, fmt.Errorf("save records: %w", err))
	}

	logger.Info().
		Int("succeeded", len(res.Records)).
		Int("failed", len(targets)-len(res.Records)).
		Dur("elapsed", time.Since(started)).
		Msg("scrape finished")
	if runErr != nil {
		return res, fmt.Errorf("scrape: %w", runErr)
	}
	return res, nil
}

// Report builds the duplicate report and publishes its sizes.
func (r *Runner) Report(records []models.Record, keying dedup.Keying) dedup.Report {
	report := dedup.Build(records, keying)
	r.metrics.SetDuplicates("name", len(report.DuplicateNames))
	r.metrics.SetDuplicates("id", len(report.DuplicateIDs))
	r.metrics.SetDuplicates("hatchingTimes", len(report.DuplicateHatchingTimes))
	r.metrics.SetDuplicates("imageUrls", len(report.DuplicateImageURLs))
	if !report.Empty() {
		r.logger.Warn().
			Strs("names", report.DuplicateNames).
			Int("ids", len(report.DuplicateIDs)).
			Int("hatching_times", len(report.DuplicateHatchingTimes)).
			Int("image_urls", len(report.DuplicateImageURLs)).
			Msg("duplicates found")
	}
	return report
}
