package browser

import (
	"context"
	"time"
)

// Snapshot is a point-in-time copy of the rendered page.
type Snapshot struct {
	URL   string
	Title string
	HTML  string
}

// Page is the slice of a browser tab the scrape pipeline drives. Every
// method honours ctx cancellation and deadline.
type Page interface {
	// Navigate issues the page load and returns once the main document
	// has committed.
	Navigate(ctx context.Context, url string) error

	// WaitContentReady blocks until the load event has fired and the DOM
	// has settled.
	WaitContentReady(ctx context.Context) error

	// Snapshot reads the current document.
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Instance is a launched browser with its single page.
type Instance interface {
	Page

	// Close terminates the browser process and frees its profile. It must
	// not depend on any request context.
	Close() error
}

// WithSnapshotTimeout bounds every Snapshot on p by d, so a hung renderer
// cannot hold a session past it. A non-positive d returns p unchanged.
func WithSnapshotTimeout(p Page, d time.Duration) Page {
	if d <= 0 {
		return p
	}
	return &boundedPage{Page: p, timeout: d}
}

type boundedPage struct {
	Page
	timeout time.Duration
}

func (b *boundedPage) Snapshot(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Page.Snapshot(ctx)
}
