package harvest

import (
	"fmt"

	"github.com/rs/zerolog"

	"harvest/internal/browser"
	"harvest/internal/config"
	"harvest/internal/session"
	"harvest/internal/static"
)

// Engine is a session factory that owns resources released by Close.
type Engine interface {
	session.Factory
	Close() error
}

type staticEngine struct {
	*static.Factory
}

func (staticEngine) Close() error { return nil }

// OpenEngine starts the session engine named by cfg.Engine. Failing to launch
// the browser is fatal for the run.
func OpenEngine(cfg *config.Config, logger zerolog.Logger) (Engine, error) {
	switch cfg.Engine {
	case "static":
		f := static.NewFactory(cfg.NavigationTimeout)
		if cfg.ProxyURL != "" {
			var err error
			if f, err = f.WithProxy(cfg.ProxyURL); err != nil {
				return nil, err
			}
		}
		return staticEngine{f}, nil
	case "rod", "":
		blocked, err := session.ParseBlockSet(cfg.BlockedResourceTypes)
		if err != nil {
			return nil, err
		}
		b, err := browser.New(browser.Config{
			ProxyURL: cfg.ProxyURL,
			Headless: cfg.Headless,
			Blocked:  blocked,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Bool("headless", cfg.Headless).Str("proxy", b.ProxyURL()).Msg("browser launched")
		return b, nil
	}
	return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
}
