// Package browser runs a Chromium instance through rod and hands out page
// sessions that satisfy session.Session.
package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"harvest/internal/session"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls how the browser is launched.
type Config struct {
	ProxyURL string
	Headless bool
	// Blocked lists sub-resource types aborted on every page.
	Blocked session.BlockSet
	Logger  zerolog.Logger
}

// Browser wraps a launched rod.Browser.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	proxyURL string
	blocked  session.BlockSet
	logger   zerolog.Logger
}

// New launches a browser. A launch or connect failure is returned as is; the
// caller treats it as fatal.
func New(cfg Config) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	blocked := cfg.Blocked
	if blocked == nil {
		blocked = session.DefaultBlocked()
	}

	return &Browser{
		browser:  b,
		launcher: l,
		proxyURL: cfg.ProxyURL,
		blocked:  blocked,
		logger:   cfg.Logger,
	}, nil
}

// ProxyURL returns the proxy the browser was launched with.
func (b *Browser) ProxyURL() string {
	return b.proxyURL
}

// NewPage opens a blank page.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Open implements session.Factory. Every page gets the request hijack router
// that aborts blocked resource types.
func (b *Browser) Open(ctx context.Context) (session.Session, error) {
	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent})

	router := page.HijackRequests()
	if err := router.Add("*", "", b.intercept); err != nil {
		page.Close()
		return nil, fmt.Errorf("install request interception: %w", err)
	}
	go router.Run()
	b.logger.Debug().Int("blocked_types", len(b.blocked)).Msg("page opened")

	return &Page{page: page, router: router}, nil
}

func (b *Browser) intercept(h *rod.Hijack) {
	rt := session.ResourceType(h.Request.Type())
	if b.blocked.Blocks(rt) {
		b.logger.Debug().Str("type", string(rt)).Str("url", h.Request.URL().String()).Msg("blocked request")
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		return
	}
	h.ContinueRequest(&proto.FetchContinueRequest{})
}

// Close closes the browser and kills the launched process.
func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}
