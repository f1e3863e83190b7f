// Package walker discovers the full target list by paging through a listing
// with a single session.
package walker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"harvest/internal/metrics"
	"harvest/internal/models"
	"harvest/internal/session"
	"harvest/internal/sites"
	"harvest/internal/slug"
)

// State is a step of the walk.
type State int

const (
	LoadList State = iota
	ExtractPage
	CheckNext
	AdvancePage
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case LoadList:
		return "load_list"
	case ExtractPage:
		return "extract_page"
	case CheckNext:
		return "check_next"
	case AdvancePage:
		return "advance_page"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options tune a walk. Zero durations are taken literally.
type Options struct {
	Site    sites.Site
	Listing sites.Options

	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	NextControlWait   time.Duration
	// MaxPages caps extracted pages; negative means no limit.
	MaxPages int

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Sleep is swapped in tests; nil sleeps on the wall clock.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Walker runs pagination walks.
type Walker struct {
	factory session.Factory
	opts    Options
}

func New(factory session.Factory, opts Options) *Walker {
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Walker{factory: factory, opts: opts}
}

// Walk traverses the listing and returns unique targets in discovery order.
// On failure the targets gathered so far are returned with the error.
func (w *Walker) Walk(ctx context.Context) ([]models.Target, error) {
	sess, err := w.factory.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			w.opts.Logger.Warn().Err(cerr).Msg("close walker session")
		}
	}()

	acc := NewAccumulator()
	state := LoadList
	page := 0
	var walkErr error

	for state != Done && state != Failed {
		next, err := w.step(ctx, sess, state, acc, &page)
		if err != nil {
			walkErr = fmt.Errorf("%s page %d: %w", state, page, err)
			next = Failed
		}
		w.opts.Logger.Debug().Str("from", state.String()).Str("to", next.String()).Msg("walker transition")
		state = next
	}

	targets := acc.Targets()
	if walkErr != nil {
		w.opts.Logger.Error().Err(walkErr).Int("targets", len(targets)).Msg("walk aborted")
		return targets, walkErr
	}
	w.opts.Logger.Info().Int("pages", page).Int("targets", len(targets)).Msg("walk complete")
	return targets, nil
}

func (w *Walker) step(ctx context.Context, sess session.Session, state State, acc *Accumulator, page *int) (State, error) {
	site := w.opts.Site

	switch state {
	case LoadList:
		url := site.ListingURL(w.opts.Listing)
		w.opts.Logger.Info().Str("url", url).Msg("loading listing")
		err := sess.Navigate(ctx, url, session.NavigateOptions{
			Timeout: w.opts.NavigationTimeout,
			Wait:    session.WaitNetworkIdle,
		})
		if err != nil {
			return Failed, err
		}
		return ExtractPage, nil

	case ExtractPage:
		doc, err := sess.Document(ctx)
		if err != nil {
			return Failed, err
		}
		*page++
		added := acc.Add(site.ParseListing(doc))
		w.opts.Metrics.IncPages()
		w.opts.Logger.Info().Int("page", *page).Int("new", added).Int("targets", acc.Len()).Msg("targets so far")
		if w.opts.MaxPages >= 0 && *page >= w.opts.MaxPages {
			return Done, nil
		}
		return CheckNext, nil

	case CheckNext:
		doc, err := sess.Document(ctx)
		if err != nil {
			return Failed, err
		}
		if !site.HasNext(doc) {
			w.opts.Logger.Info().Msg("next control disabled, listing exhausted")
			return Done, nil
		}
		return AdvancePage, nil

	case AdvancePage:
		if err := sess.Click(ctx, site.NextSelector()); err != nil {
			return Failed, err
		}
		if err := w.opts.Sleep(ctx, w.opts.SettleDelay); err != nil {
			return Failed, err
		}
		if err := sess.WaitForSelector(ctx, site.NextSelector(), w.opts.NextControlWait); err != nil {
			return Failed, err
		}
		return ExtractPage, nil
	}
	return Failed, fmt.Errorf("unexpected state %s", state)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Accumulator collects targets keyed by composite identifier; the first
// occurrence wins.
type Accumulator struct {
	seen    map[string]struct{}
	targets []models.Target
}

func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]struct{})}
}

// Add appends unseen items and returns how many were new. Items missing a code
// or a name are skipped.
func (a *Accumulator) Add(items []sites.Item) int {
	added := 0
	for _, item := range items {
		if item.Code == "" || item.Name == "" {
			continue
		}
		id := slug.Composite(item.Code, item.Name)
		if _, ok := a.seen[id]; ok {
			continue
		}
		a.seen[id] = struct{}{}
		a.targets = append(a.targets, models.Target{
			Code: item.Code,
			Name: item.Name,
			URL:  slug.Path(item.Code, item.Name),
		})
		added++
	}
	return added
}

func (a *Accumulator) Len() int { return len(a.targets) }

// Targets returns a copy of the accumulated targets.
func (a *Accumulator) Targets() []models.Target {
	out := make([]models.Target, len(a.targets))
	copy(out, a.targets)
	return out
}
