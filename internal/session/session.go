// Package session defines the page-session capability the walker and the
// scheduler drive, and the per-batch pool that owns a set of sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnsupported is returned by engines that cannot perform an operation,
// e.g. clicking a control that is not a plain link.
var ErrUnsupported = errors.New("session: operation not supported by engine")

// WaitCondition selects when a navigation is considered complete.
type WaitCondition string

const (
	WaitLoad             WaitCondition = "load"             // window load event
	WaitDOMContentLoaded WaitCondition = "domcontentloaded" // DOM parsed, sub-resources may be pending
	WaitNetworkIdle      WaitCondition = "networkidle"      // load plus a quiet network window
)

// NavigateOptions tunes a single navigation.
type NavigateOptions struct {
	Timeout time.Duration
	Wait    WaitCondition
}

// Session is one rendering or fetching context that can load and query a document.
type Session interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	// Document returns a snapshot of the current document.
	Document(ctx context.Context) (*goquery.Document, error)
	Close() error
}

// Factory opens new sessions. Implementations configure resource blocking on
// every session they open.
type Factory interface {
	Open(ctx context.Context) (Session, error)
}

// ResourceType names a sub-resource category a session may refuse to load.
type ResourceType string

const (
	ResourceImage      ResourceType = "image"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceFont       ResourceType = "font"
	ResourceMedia      ResourceType = "media"
	ResourceScript     ResourceType = "script"
)

// DefaultBlocked is the blocked set used unless configured otherwise.
func DefaultBlocked() BlockSet {
	return NewBlockSet(ResourceImage, ResourceStylesheet, ResourceFont)
}

// BlockSet is a set of resource types whose requests are aborted.
type BlockSet map[ResourceType]struct{}

// NewBlockSet builds a BlockSet from types.
func NewBlockSet(types ...ResourceType) BlockSet {
	s := make(BlockSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// ParseBlockSet parses names such as "image", "Stylesheet" into a BlockSet.
func ParseBlockSet(names []string) (BlockSet, error) {
	s := make(BlockSet, len(names))
	for _, n := range names {
		t := ResourceType(strings.ToLower(strings.TrimSpace(n)))
		switch t {
		case ResourceImage, ResourceStylesheet, ResourceFont, ResourceMedia, ResourceScript:
			s[t] = struct{}{}
		case "":
		default:
			return nil, fmt.Errorf("unknown resource type %q", n)
		}
	}
	return s, nil
}

// Blocks reports whether requests of type t must be aborted.
func (s BlockSet) Blocks(t ResourceType) bool {
	_, ok := s[ResourceType(strings.ToLower(string(t)))]
	return ok
}
