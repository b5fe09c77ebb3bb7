package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/shopee-scraper/config"
	"github.com/use-agent/shopee-scraper/models"
)

// LaunchOptions describes one browser to start.
type LaunchOptions struct {
	SessionID    string
	Proxy        *config.ProxyEndpoint
	ExtensionDir string
}

// Launcher starts browsers. RodLauncher is the production implementation.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Instance, error)
}

// Manager hands out browser sessions under a fixed ceiling. It is safe for
// concurrent use.
type Manager struct {
	limiter      *Limiter
	launcher     Launcher
	extensionDir string
	dialTimeout  time.Duration
}

// NewManager creates a Manager. The limiter is owned by the caller and may
// be shared with anything else that needs to observe session usage.
func NewManager(limiter *Limiter, launcher Launcher, proxyCfg config.ProxyConfig, extensionDir string) *Manager {
	dialTimeout := proxyCfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Manager{
		limiter:      limiter,
		launcher:     launcher,
		extensionDir: extensionDir,
		dialTimeout:  dialTimeout,
	}
}

// Acquire launches a new browser session, optionally routed through proxy.
//
// Failure modes:
//   - CAPACITY_EXCEEDED when the ceiling is reached (never queues)
//   - PROXY_ERROR when the proxy is unreachable (no direct fallback)
//   - BROWSER_LAUNCH_FAILED when the browser cannot start
//   - REQUEST_CANCELED when ctx ends first
func (m *Manager) Acquire(ctx context.Context, proxy *config.ProxyEndpoint) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCanceled, "request ended before a browser was started", err)
	}

	if !m.limiter.TryAcquire() {
		return nil, models.NewScrapeError(
			models.ErrCodeCapacityExceeded,
			fmt.Sprintf("all %d browser sessions are in use, retry later", m.limiter.Capacity()),
			nil,
		)
	}

	// The slot goes back on every path, panics included, until the session
	// owns it.
	handedOff := false
	defer func() {
		if !handedOff {
			m.limiter.Release()
		}
	}()

	id := uuid.NewString()

	if proxy != nil {
		if err := m.checkProxy(ctx, proxy); err != nil {
			return nil, err
		}
	}

	inst, err := m.launcher.Launch(ctx, LaunchOptions{
		SessionID:    id,
		Proxy:        proxy,
		ExtensionDir: m.extensionDir,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewScrapeError(models.ErrCodeCanceled, "request ended while the browser was starting", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}

	sess := newSession(id, inst, proxy, m.limiter.Release)
	handedOff = true

	slog.Info("browser session acquired",
		"session", id,
		"proxy", proxyHost(proxy),
		"active", m.limiter.InUse(),
		"max", m.limiter.Capacity(),
	)
	return sess, nil
}

// Release closes the session. It is idempotent and tolerates nil.
func (m *Manager) Release(s *Session) {
	if s == nil {
		return
	}
	_ = s.Release()
}

// Stats returns the current ceiling usage.
func (m *Manager) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    m.limiter.Capacity(),
		ActiveSessions: m.limiter.InUse(),
	}
}

// checkProxy dials the proxy so an unreachable endpoint fails before a
// browser is spawned instead of surfacing as an opaque navigation error.
func (m *Manager) checkProxy(ctx context.Context, proxy *config.ProxyEndpoint) error {
	addr, err := proxyAddr(proxy.Server)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeProxy, "invalid proxy server address", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.dialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return models.NewScrapeError(models.ErrCodeCanceled, "request ended while checking the proxy", err)
		}
		msg := fmt.Sprintf("proxy %s is unreachable", addr)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("proxy %s did not accept a connection within %s", addr, m.dialTimeout)
		}
		return models.NewScrapeError(models.ErrCodeProxy, msg, err)
	}
	_ = conn.Close()
	return nil
}

// proxyAddr turns "host:port" or "scheme://host[:port]" into a dialable
// host:port, filling in the scheme's default port.
func proxyAddr(server string) (string, error) {
	raw := server
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", server)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "socks4", "socks5":
			port = "1080"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func proxyHost(p *config.ProxyEndpoint) string {
	if p == nil {
		return "direct"
	}
	if addr, err := proxyAddr(p.Server); err == nil {
		return addr
	}
	return p.Server
}
