package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/shopee-scraper/browser"
	"github.com/use-agent/shopee-scraper/captcha"
	"github.com/use-agent/shopee-scraper/config"
	"github.com/use-agent/shopee-scraper/extractor"
	"github.com/use-agent/shopee-scraper/models"
	"github.com/use-agent/shopee-scraper/proxy"
)

// SessionManager hands out browser sessions. *browser.Manager implements it.
type SessionManager interface {
	Acquire(ctx context.Context, proxy *config.ProxyEndpoint) (*browser.Session, error)
	Release(s *browser.Session)
	Stats() models.SessionStats
}

// Deps are the pipeline's collaborators.
type Deps struct {
	Sessions  SessionManager
	Proxies   *proxy.Rotator // nil means direct connections
	Gate      *captcha.Gate
	Detector  *captcha.Detector
	Extractor *extractor.Extractor
}

// Scraper runs the product scrape pipeline. It is safe for concurrent use;
// each call to Scrape owns its own browser session.
type Scraper struct {
	sessions  SessionManager
	proxies   *proxy.Rotator
	gate      *captcha.Gate
	detector  *captcha.Detector
	extractor *extractor.Extractor
	cfg       config.ScraperConfig
}

// NewScraper wires the pipeline.
func NewScraper(d Deps, cfg config.ScraperConfig) *Scraper {
	if d.Proxies == nil {
		d.Proxies = proxy.NewRotator(nil, 0)
	}
	if d.Detector == nil {
		d.Detector = captcha.DefaultDetector()
	}
	return &Scraper{
		sessions:  d.Sessions,
		proxies:   d.Proxies,
		gate:      d.Gate,
		detector:  d.Detector,
		extractor: d.Extractor,
		cfg:       cfg,
	}
}

// Stats reports session usage and the proxy pool size.
func (s *Scraper) Stats() models.SessionStats {
	st := s.sessions.Stats()
	st.Proxies = s.proxies.Len()
	return st
}

// Scrape runs the whole pipeline for one request and always returns a
// response; failures are classified in it, never returned as errors.
func (s *Scraper) Scrape(ctx context.Context, req *models.ScrapeRequest) *models.ScrapeResponse {
	start := time.Now()
	var timing models.TimingInfo

	product, err := s.run(ctx, req.URL, &timing)

	var resp *models.ScrapeResponse
	if err != nil {
		resp = AssembleError(err)
	} else {
		resp = Assemble(product)
	}
	timing.TotalMs = time.Since(start).Milliseconds()
	resp.Timing = &timing

	if resp.Success {
		slog.Info("scrape succeeded",
			"url", req.URL,
			"fields", extractor.Describe(product),
			"total_ms", timing.TotalMs,
		)
	} else {
		slog.Warn("scrape failed",
			"url", req.URL,
			"code", resp.Error.Code,
			"message", resp.Message,
			"error", err,
			"total_ms", timing.TotalMs,
		)
	}
	return resp
}

// run executes the stages in order. Lifecycle:
//
//  1. Validate URL        – before any browser work
//  2. Acquire session     – ceiling + proxy preflight
//  3. DEFER: release      – every exit path, including panics
//  4. Navigate            – bounded by NavigationTimeout
//  5. Settle              – let client-side rendering and challenges appear
//  6. Captcha gate        – bounded by the gate's max wait
//  7. Post-gate pause     – let the product page render after a redirect
//  8. Extract
func (s *Scraper) run(ctx context.Context, rawURL string, timing *models.TimingInfo) (product *models.Product, err error) {
	// Registered first so it runs after the release below.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape pipeline panicked", "url", rawURL, "panic", r)
			product = nil
			err = models.NewScrapeError(models.ErrCodeInternal, fmt.Sprintf("unexpected failure: %v", r), nil)
		}
	}()

	// ── 1. Validate ──────────────────────────────────────────────────
	target, err := ValidateURL(rawURL, s.cfg.AllowedDomains)
	if err != nil {
		return nil, err
	}

	// ── 2. Acquire session ───────────────────────────────────────────
	proxyEp := s.proxies.Next()
	sess, err := s.sessions.Acquire(ctx, proxyEp)
	if err != nil {
		if models.CodeOf(err) == models.ErrCodeProxy {
			s.proxies.MarkFailed(proxyEp)
		}
		return nil, err
	}

	// ── 3. Release on every path ─────────────────────────────────────
	defer s.sessions.Release(sess)

	log := slog.With("session", sess.ID, "url", target.String())
	page := browser.WithSnapshotTimeout(sess.Page(), s.cfg.SnapshotTimeout)

	// ── 4. Navigate ──────────────────────────────────────────────────
	outcome := Navigate(ctx, page, target.String(), s.cfg.NavigationTimeout)
	timing.NavigationMs = outcome.Elapsed.Milliseconds()
	if ctx.Err() != nil {
		return nil, canceled(ctx, "navigation")
	}
	if outcome.Status != NavSuccess {
		navErr := outcome.ToError()
		if models.CodeOf(navErr) == models.ErrCodeProxy {
			s.proxies.MarkFailed(proxyEp)
		}
		return nil, navErr
	}
	log.Debug("navigation complete", "elapsed_ms", timing.NavigationMs)

	// ── 5. Settle ────────────────────────────────────────────────────
	if err := sleepWithContext(ctx, s.cfg.SettleDelay); err != nil {
		return nil, canceled(ctx, "page settle delay")
	}

	// ── 6. Captcha gate ──────────────────────────────────────────────
	gateStart := time.Now()
	res, err := s.gate.Resolve(ctx, page)
	timing.CaptchaMs = time.Since(gateStart).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx, "captcha wait")
		}
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "could not read the page to check for a captcha", err)
	}
	switch res.State {
	case captcha.StateFailed:
		return nil, models.NewScrapeError(models.ErrCodeCaptchaFailed, res.Detail, nil)
	case captcha.StateTimedOut:
		return nil, models.NewScrapeError(models.ErrCodeCaptchaTimeout,
			fmt.Sprintf("challenge not solved within %s", s.gate.MaxWait()), nil)
	}
	log.Debug("captcha gate passed", "state", res.State.String(), "polls", res.Polls)

	// ── 7. Post-gate pause ───────────────────────────────────────────
	if err := sleepWithContext(ctx, s.cfg.PostCaptchaDelay); err != nil {
		return nil, canceled(ctx, "post-captcha delay")
	}

	// ── 8. Extract ───────────────────────────────────────────────────
	extractStart := time.Now()
	product, snap, err := s.extractor.ExtractPage(ctx, page)
	timing.ExtractionMs = time.Since(extractStart).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx, "extraction")
		}
		return nil, err
	}
	if product.Title == nil {
		return nil, s.missingTitle(snap)
	}

	s.proxies.MarkHealthy(proxyEp)
	return product, nil
}

// missingTitle explains a page without a product title. An undetected
// challenge or a block page is the usual cause, so the page is checked for
// known block signs to make the failure actionable.
func (s *Scraper) missingTitle(snap *browser.Snapshot) error {
	msg := "product title not found"
	if parsed, err := captcha.Parse(snap); err == nil {
		if reason, blocked := s.detector.BlockReason(parsed); blocked {
			msg += "; " + reason + ", the request was likely blocked"
		}
	}
	return models.NewScrapeError(models.ErrCodeExtraction, msg, nil)
}

func canceled(ctx context.Context, stage string) error {
	return models.NewScrapeError(models.ErrCodeCanceled, "request ended during "+stage, ctx.Err())
}

// sleepWithContext waits for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
