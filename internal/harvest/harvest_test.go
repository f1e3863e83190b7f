package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"harvest/internal/config"
	"harvest/internal/metrics"
	"harvest/internal/models"
	"harvest/internal/session/sessiontest"
	_ "harvest/internal/sites/ditlep"
	"harvest/internal/store"
)

const base = "http://catalog.test"

func listingPage(next string, entries ...string) string {
	html := "<html><body>"
	for i := 0; i+1 < len(entries); i += 2 {
		html += fmt.Sprintf(`<div class="dragon-info-container"><div class="dragon-info">
<div class="ng-binding"><b class="text-danger ng-binding">%s</b></div>
<div><b class="text-success ng-binding">%s</b></div></div></div>`, entries[i], entries[i+1])
	}
	return html + fmt.Sprintf(`<ul><li class="pagination-next ng-scope %s"><a class="ng-binding">Next</a></li></ul></body></html>`, next)
}

func detailPage(hours int) string {
	return fmt.Sprintf(`<html><body><p class="ng-binding">%d hours</p></body></html>`, hours)
}

type fixture struct {
	site   *sessiontest.Site
	cfg    *config.Config
	store  *store.JSON
	runner *Runner
}

func newFixture(t *testing.T, factory *sessiontest.Factory) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.BaseURL = base
	cfg.Lang = "en"
	cfg.BatchSize = 2
	cfg.Concurrency = 2
	cfg.TargetsFile = filepath.Join(dir, "targets.json")
	cfg.RecordsFile = filepath.Join(dir, "records.json")

	st := store.NewJSON(store.Files{Targets: cfg.TargetsFile, Records: cfg.RecordsFile})
	r, err := NewRunner(cfg, factory, st, zerolog.Nop(), metrics.New())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	r.Sleep = func(context.Context, time.Duration) error { return nil }
	return &fixture{site: factory.Site, cfg: cfg, store: st, runner: r}
}

func TestNewRunnerUnknownSite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Site = "nowhere"
	if _, err := NewRunner(cfg, nil, nil, zerolog.Nop(), nil); err == nil {
		t.Fatal("expected error for unknown site")
	}
}

func TestDiscoverSavesTargets(t *testing.T) {
	site := sessiontest.NewSite()
	site.Pages[base+"/code?lang=en"] = listingPage("", "1", "Lava Dragon", "2", "Ice Dragon")
	site.Pages["p2"] = listingPage("disabled", "2", "Ice Dragon", "3", "Wind Dragon")
	site.Next[base+"/code?lang=en"] = "p2"
	f := newFixture(t, &sessiontest.Factory{Site: site})

	targets, err := f.runner.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("got %d targets, want 3", len(targets))
	}
	saved, err := f.store.LoadTargets(context.Background())
	if err != nil {
		t.Fatalf("LoadTargets: %v", err)
	}
	if !reflect.DeepEqual(saved, targets) {
		t.Errorf("saved %+v, want %+v", saved, targets)
	}
}

func TestDiscoverSavesPartialTargets(t *testing.T) {
	site := sessiontest.NewSite()
	site.Pages[base+"/code?lang=en"] = listingPage("", "1", "Lava Dragon")
	site.ClickErr = errors.New("detached")
	f := newFixture(t, &sessiontest.Factory{Site: site})

	_, err := f.runner.Discover(context.Background())
	if err == nil {
		t.Fatal("expected walk error")
	}
	saved, loadErr := f.store.LoadTargets(context.Background())
	if loadErr != nil {
		t.Fatalf("LoadTargets: %v", loadErr)
	}
	if len(saved) != 1 {
		t.Errorf("saved %d partial targets, want 1", len(saved))
	}
}

func scrapeTargets(site *sessiontest.Site) []models.Target {
	targets := []models.Target{
		{Code: "1", Name: "Lava Dragon", URL: "1/lava-dragon"},
		{Code: "2", Name: "Ice Dragon", URL: "2/ice-dragon"},
		{Code: "3", Name: "Lava Dragon", URL: "3/lava-dragon"},
	}
	for i, t := range targets {
		site.Pages[base+"/dragons/"+t.URL+"?lang=en"] = detailPage(i + 1)
	}
	return targets
}

func TestScrapeAssignsIDsAndReports(t *testing.T) {
	site := sessiontest.NewSite()
	targets := scrapeTargets(site)
	f := newFixture(t, &sessiontest.Factory{Site: site})
	if err := f.store.SaveTargets(context.Background(), targets); err != nil {
		t.Fatal(err)
	}

	res, err := f.runner.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	for i, r := range res.Records {
		if r.ID != i+1 || r.Name != targets[i].Name {
			t.Errorf("record %d = %+v", i, r)
		}
	}
	if !reflect.DeepEqual(res.Report.DuplicateNames, []string{"Lava Dragon"}) {
		t.Errorf("DuplicateNames = %q", res.Report.DuplicateNames)
	}

	saved, err := f.store.LoadRecords(context.Background())
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(saved) != 3 {
		t.Errorf("saved %d records, want 3", len(saved))
	}
}

func TestScrapePlaceholderGetsFreshID(t *testing.T) {
	site := sessiontest.NewSite()
	targets := scrapeTargets(site)
	site.NavErr[base+"/dragons/2/ice-dragon?lang=en"] = errors.New("reset")
	f := newFixture(t, &sessiontest.Factory{Site: site})
	f.cfg.FailurePolicy = "placeholder"

	res, err := f.runner.ScrapeTargets(context.Background(), targets)
	if err != nil {
		t.Fatalf("ScrapeTargets: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	ph := res.Records[1]
	if ph.ID != 2 || ph.Error == "" || ph.HatchingTimes.Sentinel != models.ErrorSentinel {
		t.Errorf("placeholder = %+v", ph)
	}
	if len(res.Report.DuplicateIDs) != 0 {
		t.Errorf("placeholder reused an id: %q", res.Report.DuplicateIDs)
	}
}

func TestScrapePersistsPartialOnFatal(t *testing.T) {
	site := sessiontest.NewSite()
	targets := scrapeTargets(site)
	// Batch one opens sessions 1 and 2; batch two cannot open any.
	f := newFixture(t, &sessiontest.Factory{Site: site, FailOpenAt: 3})

	res, err := f.runner.ScrapeTargets(context.Background(), targets)
	if err == nil {
		t.Fatal("expected fatal pool error")
	}
	if len(res.Records) != 2 {
		t.Errorf("got %d records, want 2", len(res.Records))
	}
	saved, loadErr := f.store.LoadRecords(context.Background())
	if loadErr != nil {
		t.Fatalf("LoadRecords: %v", loadErr)
	}
	if len(saved) != 2 {
		t.Errorf("saved %d records, want 2", len(saved))
	}
}

func TestLogLinesCarryOneComponent(t *testing.T) {
	site := sessiontest.NewSite()
	site.Pages[base+"/code?lang=en"] = listingPage("disabled", "1", "Lava Dragon")
	targets := scrapeTargets(site)
	f := newFixture(t, &sessiontest.Factory{Site: site})

	buf := &bytes.Buffer{}
	f.runner.logger = zerolog.New(zerolog.SyncWriter(buf)).Level(zerolog.DebugLevel).
		With().Str("component", "harvest").Logger()

	if _, err := f.runner.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if _, err := f.runner.ScrapeTargets(context.Background(), targets); err != nil {
		t.Fatalf("ScrapeTargets: %v", err)
	}

	out := buf.String()
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if n := strings.Count(line, `"component"`); n != 1 {
			t.Errorf("component written %d times: %s", n, line)
		}
	}
	for _, want := range []string{`"stage":"walker"`, `"stage":"scheduler"`, `"message":"duplicates so far"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s", want)
		}
	}

	// Batch two holds the second Lava Dragon, so only its report names it.
	var reports []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "duplicates so far") {
			reports = append(reports, line)
		}
	}
	if len(reports) != 2 {
		t.Fatalf("got %d running reports, want 2", len(reports))
	}
	if strings.Contains(reports[0], "Lava Dragon") || !strings.Contains(reports[1], `"names":["Lava Dragon"]`) {
		t.Errorf("running reports = %q", reports)
	}
}
