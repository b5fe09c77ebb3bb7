package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/shopee-scraper/config"
	"github.com/ysmood/gson"
)

// hideWebdriverJS removes navigator.webdriver from the prototype so the
// property reads as undefined rather than false.
const hideWebdriverJS = `delete Object.getPrototypeOf(navigator).webdriver`

// Bounds for cleanup and for the DOM-settling part of readiness.
const (
	closeTimeout     = 5 * time.Second
	domStableTimeout = 5 * time.Second
)

// RodLauncher starts one Chromium process per session via go-rod.
type RodLauncher struct {
	cfg config.BrowserConfig
}

// NewRodLauncher creates a launcher using the given browser settings.
func NewRodLauncher(cfg config.BrowserConfig) *RodLauncher {
	return &RodLauncher{cfg: cfg}
}

// Launch starts a browser with the stealth configuration applied and opens
// its page. Each browser gets a fresh temporary profile.
//
// The browser lives on its own context so that release does not depend on
// the request; ctx only bounds the launch itself.
func (r *RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Instance, error) {
	sessCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	l := launcher.New().
		Context(sessCtx).
		Headless(r.cfg.Headless).
		NoSandbox(r.cfg.NoSandbox).
		Leakless(true)

	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}
	if opts.Proxy != nil {
		l = l.Proxy(opts.Proxy.Server)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))
	if r.cfg.ViewportWidth > 0 && r.cfg.ViewportHeight > 0 {
		l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", r.cfg.ViewportWidth, r.cfg.ViewportHeight))
	}
	if lang := primaryLanguage(r.cfg.AcceptLanguage); lang != "" {
		l.Set(flags.Flag("lang"), lang)
	}

	// ── Solver extension ─────────────────────────────────────────────
	if opts.ExtensionDir != "" {
		l.Set(flags.Flag("disable-extensions-except"), opts.ExtensionDir)
		l.Set(flags.Flag("load-extension"), opts.ExtensionDir)
	} else {
		l.Set(flags.Flag("disable-extensions"))
	}

	controlURL, err := l.Launch()
	if err != nil {
		// Cleanup would block forever if the process never started.
		cancel()
		l.Kill()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	inst := &rodInstance{launcher: l, cancel: cancel, sessionID: opts.SessionID}

	inst.browser = rod.New().ControlURL(controlURL).Context(sessCtx)
	if err := inst.browser.Connect(); err != nil {
		inst.teardown()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	// Chrome's proxy-auth prompt is answered once; the credentials are then
	// cached for the lifetime of the browser.
	if opts.Proxy != nil && opts.Proxy.HasAuth() {
		go func() {
			if err := inst.browser.HandleAuth(opts.Proxy.Username, opts.Proxy.Password)(); err != nil && sessCtx.Err() == nil {
				slog.Warn("proxy authentication handler failed", "session", opts.SessionID, "error", err)
			}
		}()
	}

	if err := inst.openPage(r.cfg, opts); err != nil {
		_ = inst.Close()
		return nil, err
	}

	slog.Debug("browser launched",
		"session", opts.SessionID,
		"pid", l.PID(),
		"headless", r.cfg.Headless,
		"extension", opts.ExtensionDir != "",
	)
	return inst, nil
}

// rodInstance is a launched Chromium process and its single page.
type rodInstance struct {
	sessionID string
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	cancel    context.CancelFunc
}

// openPage creates the stealth page and applies identity overrides. All of
// this must happen before the first navigation.
func (r *rodInstance) openPage(cfg config.BrowserConfig, opts LaunchOptions) error {
	page, err := stealth.Page(r.browser)
	if err != nil {
		return fmt.Errorf("open stealth page: %w", err)
	}
	r.page = page

	if _, err := page.EvalOnNewDocument(hideWebdriverJS); err != nil {
		slog.Warn("webdriver removal script failed, proceeding", "session", r.sessionID, "error", err)
	}

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      cfg.UserAgent,
			AcceptLanguage: cfg.AcceptLanguage,
			Platform:       platformFor(cfg.UserAgent),
		}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportWidth,
			Height:            cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}

	headers := map[string]string{"Referer": "https://www.google.com/"}
	if cfg.AcceptLanguage != "" {
		headers["Accept-Language"] = cfg.AcceptLanguage
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)

	// Resource blocking and proxy auth both use the Fetch domain.
	if len(cfg.BlockedResourceTypes) > 0 {
		if opts.Proxy != nil && opts.Proxy.HasAuth() {
			slog.Warn("resource blocking disabled: proxy credentials in use", "session", r.sessionID)
		} else {
			r.router = setupHijack(page, cfg.BlockedResourceTypes)
		}
	}
	return nil
}

func (r *rodInstance) Navigate(ctx context.Context, url string) error {
	return r.page.Context(ctx).Navigate(url)
}

func (r *rodInstance) WaitContentReady(ctx context.Context) error {
	p := r.page.Context(ctx)
	if err := p.WaitLoad(); err != nil {
		return err
	}
	// Pages with carousels may never be fully stable; settling is best-effort.
	if err := p.Timeout(domStableTimeout).WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"session", r.sessionID,
			"error", err,
		)
	}
	return nil
}

func (r *rodInstance) Snapshot(ctx context.Context) (*Snapshot, error) {
	p := r.page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	info, err := p.Info()
	if err != nil {
		return nil, fmt.Errorf("read page info: %w", err)
	}
	return &Snapshot{URL: info.URL, Title: info.Title, HTML: html}, nil
}

// Close tears the browser down on its own deadline; the request context may
// already be gone.
func (r *rodInstance) Close() error {
	if r.router != nil {
		_ = r.router.Stop()
	}
	var err error
	if r.browser != nil {
		err = r.browser.Timeout(closeTimeout).Close()
	}
	r.teardown()
	return err
}

func (r *rodInstance) teardown() {
	r.cancel()
	r.launcher.Kill()
	r.launcher.Cleanup()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// primaryLanguage returns the first tag of an Accept-Language value.
func primaryLanguage(acceptLanguage string) string {
	first, _, _ := strings.Cut(acceptLanguage, ",")
	first, _, _ = strings.Cut(first, ";")
	return strings.TrimSpace(first)
}

// platformFor keeps navigator.platform consistent with the user agent.
func platformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Linux"):
		return "Linux x86_64"
	}
	return ""
}

// IsNavigationError reports whether err is a Chromium net::ERR_* failure
// and returns its reason.
func IsNavigationError(err error) (string, bool) {
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return navErr.Reason, true
	}
	return "", false
}
