// Package scheduler fetches and extracts target detail pages in sequential
// batches, with a bounded number of sessions working in parallel.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"harvest/internal/metrics"
	"harvest/internal/models"
	"harvest/internal/session"
	"harvest/internal/sites"
	"harvest/internal/throttle"
)

// FailurePolicy decides what a failed target contributes to the output.
type FailurePolicy string

const (
	// PolicyDrop omits failed targets.
	PolicyDrop FailurePolicy = "drop"
	// PolicyPlaceholder emits an error fragment in the failed target's slot.
	PolicyPlaceholder FailurePolicy = "placeholder"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyDrop, PolicyPlaceholder:
		return p, nil
	case "":
		return PolicyDrop, nil
	}
	return "", fmt.Errorf("unknown failure policy %q (want drop or placeholder)", s)
}

// Checkpoint remembers fragments of targets completed by earlier runs.
type Checkpoint interface {
	Get(ctx context.Context, t models.Target) (models.Fragment, bool, error)
	Put(ctx context.Context, t models.Target, f models.Fragment) error
}

// Progress is reported after every sub-batch and once more when a batch ends.
type Progress struct {
	Batch      int // 1-based
	Batches    int
	Processed  int // targets of this batch handled so far
	BatchTotal int
	Succeeded  int // run-wide
	Failed     int // run-wide
	Total      int
	BatchDone  bool
}

// Options configure a Scheduler.
type Options struct {
	Site    sites.Site
	Listing sites.Options

	BatchSize         int
	Concurrency       int
	NavigationTimeout time.Duration
	Policy            FailurePolicy

	// Barrier runs before every batch; its first wait passes immediately.
	Barrier    *throttle.Barrier
	Checkpoint Checkpoint
	Progress   func(Progress)
	// BatchDone receives the run's fragments so far after each completed batch.
	BatchDone func(batch int, sofar []models.Fragment)

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Scheduler runs fetch-and-extract tasks over a target list.
type Scheduler struct {
	factory session.Factory
	opts    Options
}

func New(factory session.Factory, opts Options) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.Policy == "" {
		opts.Policy = PolicyDrop
	}
	if opts.Barrier == nil {
		opts.Barrier = throttle.NewBarrier(0)
	}
	return &Scheduler{factory: factory, opts: opts}
}

// Partition splits items into consecutive chunks of at most size elements.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

type runState struct {
	batch     int
	batches   int
	total     int
	succeeded int
	failed    int
}

// Run processes targets batch by batch and returns fragments in target order.
// Per-target failures are absorbed according to the failure policy. A session
// pool failure or context cancellation aborts the run; the fragments gathered
// up to that point are returned alongside the error.
func (s *Scheduler) Run(ctx context.Context, targets []models.Target) ([]models.Fragment, error) {
	batches := Partition(targets, s.opts.BatchSize)
	state := &runState{batches: len(batches), total: len(targets)}
	out := make([]models.Fragment, 0, len(targets))

	s.opts.Barrier.Reset()
	for i, batch := range batches {
		if err := s.opts.Barrier.Wait(ctx); err != nil {
			return out, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
		state.batch = i + 1
		s.opts.Logger.Info().Int("batch", state.batch).Int("batches", state.batches).Int("size", len(batch)).Msg("processing batch")

		start := time.Now()
		frags, err := s.runBatch(ctx, batch, state)
		s.opts.Metrics.ObserveBatch(time.Since(start))
		out = append(out, frags...)
		if err != nil {
			return out, fmt.Errorf("batch %d/%d: %w", state.batch, state.batches, err)
		}
		if s.opts.BatchDone != nil {
			s.opts.BatchDone(state.batch, out)
		}
	}
	return out, nil
}

func (s *Scheduler) runBatch(ctx context.Context, batch []models.Target, state *runState) ([]models.Fragment, error) {
	results := make([]*models.Fragment, len(batch))
	pending := s.restore(ctx, batch, results, state)
	processed := len(batch) - len(pending)

	collect := func() []models.Fragment {
		frags := make([]models.Fragment, 0, len(batch))
		for _, f := range results {
			if f != nil {
				frags = append(frags, *f)
			}
		}
		return frags
	}

	if len(pending) > 0 {
		width := min(s.opts.Concurrency, len(pending))
		pool := session.NewPool(s.factory, func(n int) { s.opts.Metrics.AddSessions(-n) })
		sessions, err := pool.Acquire(ctx, width)
		if err != nil {
			return collect(), fmt.Errorf("acquire session pool: %w", err)
		}
		s.opts.Metrics.AddSessions(len(sessions))
		defer func() {
			if err := pool.Release(); err != nil {
				s.opts.Logger.Warn().Err(err).Msg("release session pool")
			}
		}()

		for _, sub := range Partition(pending, s.opts.Concurrency) {
			s.runSubBatch(ctx, sessions, batch, sub, results, state)
			processed += len(sub)
			s.report(state, processed, len(batch), false)
			if err := ctx.Err(); err != nil {
				return collect(), err
			}
		}
	}

	s.report(state, processed, len(batch), true)
	return collect(), nil
}

// restore fills results from the checkpoint and returns the indexes still to
// be fetched.
func (s *Scheduler) restore(ctx context.Context, batch []models.Target, results []*models.Fragment, state *runState) []int {
	pending := make([]int, 0, len(batch))
	for i, t := range batch {
		if s.opts.Checkpoint == nil {
			pending = append(pending, i)
			continue
		}
		f, ok, err := s.opts.Checkpoint.Get(ctx, t)
		if err != nil {
			s.opts.Logger.Warn().Err(err).Str("target", t.URL).Msg("checkpoint lookup failed")
		}
		if !ok {
			pending = append(pending, i)
			continue
		}
		results[i] = &f
		state.succeeded++
		s.opts.Metrics.IncTarget("cached")
	}
	return pending
}

type taskResult struct {
	frag models.Fragment
	err  error
}

// runSubBatch runs one task per index on its own session and waits for all of
// them. Results land in results by input index.
func (s *Scheduler) runSubBatch(ctx context.Context, sessions []session.Session, batch []models.Target, sub []int, results []*models.Fragment, state *runState) {
	out := make([]taskResult, len(sub))
	var wg sync.WaitGroup
	for j, idx := range sub {
		wg.Add(1)
		go func(j int, sess session.Session, t models.Target) {
			defer wg.Done()
			frag, err := s.fetch(ctx, sess, t)
			out[j] = taskResult{frag: frag, err: err}
		}(j, sessions[j], batch[idx])
	}
	wg.Wait()

	for j, idx := range sub {
		t := batch[idx]
		r := out[j]
		if r.err == nil {
			results[idx] = &r.frag
			state.succeeded++
			s.opts.Metrics.IncTarget("ok")
			if s.opts.Checkpoint != nil {
				if err := s.opts.Checkpoint.Put(ctx, t, r.frag); err != nil {
					s.opts.Logger.Warn().Err(err).Str("target", t.URL).Msg("checkpoint write failed")
				}
			}
			continue
		}

		state.failed++
		kind := KindOf(r.err)
		s.opts.Metrics.IncTarget("failed")
		s.opts.Metrics.IncError(string(kind))
		s.opts.Logger.Error().Err(r.err).Str("target", t.URL).Str("error_type", string(kind)).Msg("target failed")
		if s.opts.Policy == PolicyPlaceholder && ctx.Err() == nil {
			p := models.Placeholder(t.Name, r.err)
			results[idx] = &p
		}
	}
}

// fetch navigates one session to t's detail page and extracts it. Panics are
// turned into errors here so one target cannot take down its siblings.
func (s *Scheduler) fetch(ctx context.Context, sess session.Session, t models.Target) (frag models.Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Target: t, Kind: KindPanic, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if s.opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.NavigationTimeout)
		defer cancel()
	}

	url := s.opts.Site.DetailURL(s.opts.Listing, t)
	err = sess.Navigate(ctx, url, session.NavigateOptions{
		Timeout: s.opts.NavigationTimeout,
		Wait:    session.WaitDOMContentLoaded,
	})
	if err != nil {
		return models.Fragment{}, navigationError(t, err)
	}

	doc, err := sess.Document(ctx)
	if err != nil {
		return models.Fragment{}, &TaskError{Target: t, Kind: KindExtract, Err: err}
	}
	ex, err := s.opts.Site.Extract(doc)
	if err != nil {
		return models.Fragment{}, &TaskError{Target: t, Kind: KindExtract, Err: err}
	}
	return models.Fragment{
		Name:          t.Name,
		HatchingTimes: ex.HatchingTimes,
		ImageURLs:     ex.ImageURLs,
	}, nil
}

func (s *Scheduler) report(state *runState, processed, batchTotal int, done bool) {
	p := Progress{
		Batch:      state.batch,
		Batches:    state.batches,
		Processed:  processed,
		BatchTotal: batchTotal,
		Succeeded:  state.succeeded,
		Failed:     state.failed,
		Total:      state.total,
		BatchDone:  done,
	}
	if !done {
		s.opts.Logger.Info().Int("processed", processed).Int("batch_total", batchTotal).Msg("processed")
	}
	if s.opts.Progress != nil {
		s.opts.Progress(p)
	}
}
