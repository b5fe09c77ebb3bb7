package browser

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/shopee-scraper/config"
)

// Session is an exclusively owned browser with one page, created for a
// single request and released exactly once.
type Session struct {
	ID        string
	Proxy     *config.ProxyEndpoint
	CreatedAt time.Time

	inst      Instance
	onRelease func()
	once      sync.Once
	released  atomic.Bool
}

func newSession(id string, inst Instance, proxy *config.ProxyEndpoint, onRelease func()) *Session {
	return &Session{
		ID:        id,
		Proxy:     proxy,
		CreatedAt: time.Now(),
		inst:      inst,
		onRelease: onRelease,
	}
}

// Page returns the session's page.
func (s *Session) Page() Page { return s.inst }

// Release closes the browser and frees the ceiling slot. Calls after the
// first are no-ops.
func (s *Session) Release() error {
	var err error
	s.once.Do(func() {
		// The slot is returned even if Close panics.
		defer func() {
			s.released.Store(true)
			s.onRelease()
		}()
		err = s.inst.Close()
		if err != nil {
			slog.Warn("browser session closed with error", "session", s.ID, "error", err)
		}
		slog.Debug("browser session released",
			"session", s.ID,
			"lifetime", time.Since(s.CreatedAt).Round(time.Millisecond).String(),
		)
	})
	return err
}

// Released reports whether Release has run.
func (s *Session) Released() bool { return s.released.Load() }
