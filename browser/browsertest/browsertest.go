// Package browsertest provides in-memory browser fakes for exercising the
// scrape pipeline without launching Chromium.
package browsertest

import (
	"context"
	"errors"
	"sync"

	"github.com/use-agent/shopee-scraper/browser"
)

// ErrClosed is returned by a Page used after Close.
var ErrClosed = errors.New("browsertest: page closed")

// Page is a scriptable browser.Instance.
//
// Unset hooks fall back to defaults: navigation succeeds, content is ready
// immediately and Snapshot returns HTML at URL.
type Page struct {
	URL  string
	HTML string

	NavigateFunc func(ctx context.Context, url string) error
	ReadyFunc    func(ctx context.Context) error
	SnapshotFunc func(ctx context.Context) (*browser.Snapshot, error)

	mu        sync.Mutex
	visited   []string
	snapshots int
	closes    int
}

// NewPage returns a Page serving html at url.
func NewPage(url, html string) *Page {
	return &Page{URL: url, HTML: html}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.visited = append(p.visited, url)
	closed := p.closes > 0
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if p.NavigateFunc != nil {
		return p.NavigateFunc(ctx, url)
	}
	return ctx.Err()
}

func (p *Page) WaitContentReady(ctx context.Context) error {
	if p.ReadyFunc != nil {
		return p.ReadyFunc(ctx)
	}
	return ctx.Err()
}

func (p *Page) Snapshot(ctx context.Context) (*browser.Snapshot, error) {
	p.mu.Lock()
	p.snapshots++
	closed := p.closes > 0
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if p.SnapshotFunc != nil {
		return p.SnapshotFunc(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &browser.Snapshot{URL: p.URL, HTML: p.HTML}, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

// Visited returns the URLs passed to Navigate.
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Snapshots returns how many times Snapshot was called.
func (p *Page) Snapshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots
}

// Closes returns how many times Close was called.
func (p *Page) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Launcher is a browser.Launcher handing out Pages.
type Launcher struct {
	// NewPage builds the page for each launch. Defaults to an empty page.
	NewPage func(opts browser.LaunchOptions) *Page

	// Err, when set, fails every launch.
	Err error

	mu       sync.Mutex
	launches []browser.LaunchOptions
	pages    []*Page
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches = append(l.launches, opts)
	if l.Err != nil {
		return nil, l.Err
	}
	var p *Page
	if l.NewPage != nil {
		p = l.NewPage(opts)
	} else {
		p = &Page{}
	}
	l.pages = append(l.pages, p)
	return p, nil
}

// Launches returns the options of every launch attempt.
func (l *Launcher) Launches() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchOptions(nil), l.launches...)
}

// Pages returns the pages created so far.
func (l *Launcher) Pages() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Page(nil), l.pages...)
}
