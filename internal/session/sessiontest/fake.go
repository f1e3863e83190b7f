// Package sessiontest provides an in-memory session engine for tests.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"harvest/internal/session"
)

// Site is a set of canned pages served by fake sessions.
type Site struct {
	mu sync.Mutex

	Pages    map[string]string        // url -> html
	Next     map[string]string        // url -> url reached by Click
	NavErr   map[string]error         // url -> navigation error
	NavDelay map[string]time.Duration // url -> simulated load time
	Panics   map[string]bool          // url -> panic during navigation
	ClickErr error

	inFlight    int
	maxInFlight int
	visits      []string
}

// NewSite returns an empty Site.
func NewSite() *Site {
	return &Site{
		Pages:    make(map[string]string),
		Next:     make(map[string]string),
		NavErr:   make(map[string]error),
		NavDelay: make(map[string]time.Duration),
		Panics:   make(map[string]bool),
	}
}

// MaxInFlight returns the highest number of concurrent navigations observed.
func (s *Site) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// Visits returns the navigated urls in call order.
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.visits))
	copy(out, s.visits)
	return out
}

// Factory opens fake sessions on a Site.
type Factory struct {
	Site *Site

	// FailOpenAt makes the n-th Open call (1-based) fail. Zero disables it.
	FailOpenAt int

	mu     sync.Mutex
	opened int
	closed int
}

// Open implements session.Factory.
func (f *Factory) Open(ctx context.Context) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	if f.FailOpenAt > 0 && f.opened == f.FailOpenAt {
		return nil, errors.New("fake: cannot open session")
	}
	return &Session{site: f.Site, factory: f}, nil
}

// Opened returns how many Open calls were made.
func (f *Factory) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Closed returns how many sessions were closed.
func (f *Factory) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Session is a fake session.Session.
type Session struct {
	site    *Site
	factory *Factory
	current string
	closed  bool
}

func (s *Session) Navigate(ctx context.Context, url string, opts session.NavigateOptions) error {
	site := s.site
	site.mu.Lock()
	site.visits = append(site.visits, url)
	site.inFlight++
	if site.inFlight > site.maxInFlight {
		site.maxInFlight = site.inFlight
	}
	delay := site.NavDelay[url]
	navErr := site.NavErr[url]
	panics := site.Panics[url]
	site.mu.Unlock()

	defer func() {
		site.mu.Lock()
		site.inFlight--
		site.mu.Unlock()
	}()

	if panics {
		panic("fake: navigation panic for " + url)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if navErr != nil {
		return navErr
	}
	site.mu.Lock()
	_, ok := site.Pages[url]
	site.mu.Unlock()
	if !ok {
		return fmt.Errorf("fake: no page for %s", url)
	}
	s.current = url
	return nil
}

func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	doc, err := s.Document(ctx)
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("fake: selector %q not found", selector)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	s.site.mu.Lock()
	defer s.site.mu.Unlock()
	if s.site.ClickErr != nil {
		return s.site.ClickErr
	}
	next, ok := s.site.Next[s.current]
	if !ok {
		return fmt.Errorf("fake: nothing to click on %s", s.current)
	}
	s.current = next
	return nil
}

func (s *Session) Document(ctx context.Context) (*goquery.Document, error) {
	s.site.mu.Lock()
	html, ok := s.site.Pages[s.current]
	s.site.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fake: no document loaded")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.factory != nil {
		s.factory.mu.Lock()
		s.factory.closed++
		s.factory.mu.Unlock()
	}
	return nil
}
