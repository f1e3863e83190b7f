package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"harvest/internal/session"
)

// networkIdleWindow is how long the network must stay quiet for WaitNetworkIdle.
const networkIdleWindow = 500 * time.Millisecond

// Page is a rod page acting as a session.Session.
type Page struct {
	page   *rod.Page
	router *rod.HijackRouter
}

// Navigate loads url and waits according to opts.Wait.
func (p *Page) Navigate(ctx context.Context, url string, opts session.NavigateOptions) error {
	page := p.page.Context(ctx)
	if opts.Timeout > 0 {
		page = page.Timeout(opts.Timeout)
	}

	switch opts.Wait {
	case session.WaitDOMContentLoaded:
		wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		wait()

	case session.WaitNetworkIdle:
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("wait for load: %w", err)
		}
		idle := page.WaitRequestIdle(
			networkIdleWindow, nil, nil,
			[]proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia},
		)
		idle()

	default:
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("wait for load: %w", err)
		}
	}

	// The wait helpers swallow their own timeouts; surface them here.
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// WaitForSelector blocks until selector matches an element or timeout elapses.
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	page := p.page.Context(ctx)
	if timeout > 0 {
		page = page.Timeout(timeout)
	}
	if _, err := page.Element(selector); err != nil {
		return fmt.Errorf("wait for element '%s': %w", selector, err)
	}
	return nil
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("find element '%s': %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click '%s': %w", selector, err)
	}
	return nil
}

// Document snapshots the rendered DOM and parses it.
func (p *Page) Document(ctx context.Context) (*goquery.Document, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return doc, nil
}

// Close stops request interception and closes the page.
func (p *Page) Close() error {
	var errs []error
	if p.router != nil {
		if err := p.router.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.page != nil {
		if err := p.page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
