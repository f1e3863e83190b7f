// Package static implements session.Session on top of a colly collector. It
// fetches documents without rendering them, so it suits catalogs whose markup
// is served complete, and it lets tests run without a browser.
package static

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"harvest/internal/session"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"

// Factory hands out sessions sharing one collector configuration.
type Factory struct {
	collector *colly.Collector
}

// NewFactory builds a Factory whose requests time out after timeout. The
// timeout lives on the collector's shared HTTP client, so it is fixed here
// rather than per navigation. A static fetch never requests sub-resources,
// so there is no blocked set to apply.
func NewFactory(timeout time.Duration) *Factory {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = true
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}
	return &Factory{collector: c}
}

// WithTransport swaps the HTTP transport used by every session.
func (f *Factory) WithTransport(rt http.RoundTripper) *Factory {
	f.collector.WithTransport(rt)
	return f
}

// WithProxy routes every request through proxyURL.
func (f *Factory) WithProxy(proxyURL string) (*Factory, error) {
	if err := f.collector.SetProxy(proxyURL); err != nil {
		return nil, fmt.Errorf("set proxy: %w", err)
	}
	return f, nil
}

// Open implements session.Factory.
func (f *Factory) Open(ctx context.Context) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Session{collector: f.collector}, nil
}

// Session is a non-rendering session.
type Session struct {
	collector *colly.Collector
	current   *url.URL
	body      []byte
}

// Navigate fetches url. Wait conditions mean nothing without rendering and
// are ignored.
func (s *Session) Navigate(ctx context.Context, rawURL string, opts session.NavigateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := s.collector.Clone()

	var (
		body     []byte
		final    *url.URL
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		final = r.Request.URL
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(rawURL); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, fetchErr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.body = body
	s.current = final
	return nil
}

// WaitForSelector checks the fetched document once; there is nothing to wait for.
func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	doc, err := s.Document(ctx)
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("element '%s' not found", selector)
	}
	return nil
}

// Click follows the href of the first anchor matching selector. Controls that
// only work through scripts report session.ErrUnsupported.
func (s *Session) Click(ctx context.Context, selector string) error {
	doc, err := s.Document(ctx)
	if err != nil {
		return err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("element '%s' not found", selector)
	}
	href, ok := sel.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return fmt.Errorf("click '%s': %w", selector, session.ErrUnsupported)
	}
	next, err := s.current.Parse(href)
	if err != nil {
		return fmt.Errorf("resolve href %q: %w", href, err)
	}
	return s.Navigate(ctx, next.String(), session.NavigateOptions{})
}

// Document parses the last fetched body.
func (s *Session) Document(ctx context.Context) (*goquery.Document, error) {
	if s.current == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(s.body))
}

// Close drops the fetched document.
func (s *Session) Close() error {
	s.body = nil
	s.current = nil
	return nil
}
