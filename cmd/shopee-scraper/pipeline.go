package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/use-agent/shopee-scraper/browser"
	"github.com/use-agent/shopee-scraper/captcha"
	"github.com/use-agent/shopee-scraper/config"
	"github.com/use-agent/shopee-scraper/extractor"
	"github.com/use-agent/shopee-scraper/proxy"
	"github.com/use-agent/shopee-scraper/scraper"
)

// buildScraper wires the pipeline from cfg. The returned cleanup removes the
// prepared extension copy and must run after the last scrape.
func buildScraper(cfg *config.Config) (*scraper.Scraper, func(), error) {
	fs := afero.NewOsFs()
	cleanup := func() {}

	// ── Captcha solver extension ────────────────────────────────────
	extDir := ""
	if cfg.Captcha.ExtensionDir != "" {
		dst, err := afero.TempDir(fs, "", "shopee-scraper-ext-")
		if err != nil {
			return nil, cleanup, fmt.Errorf("create extension dir: %w", err)
		}
		patched, err := captcha.PrepareExtension(fs, cfg.Captcha.ExtensionDir, dst, cfg.Captcha.APIKey)
		if err != nil {
			_ = fs.RemoveAll(dst)
			return nil, cleanup, fmt.Errorf("prepare captcha extension: %w", err)
		}
		extDir = dst
		cleanup = func() { _ = fs.RemoveAll(dst) }
		slog.Info("captcha extension prepared", "src", cfg.Captcha.ExtensionDir, "dir", dst, "patched", patched)
	} else {
		slog.Warn("no captcha extension configured, challenged pages will fail")
	}

	// ── Browser sessions ────────────────────────────────────────────
	limiter := browser.NewLimiter(cfg.Browser.MaxSessions)
	sessions := browser.NewManager(limiter, browser.NewRodLauncher(cfg.Browser), cfg.Proxy, extDir)

	// ── Captcha gate ────────────────────────────────────────────────
	detector := captcha.DefaultDetector()
	gate := captcha.NewGate(detector, captcha.NewExtensionSolver(detector, extDir), cfg.Captcha)

	sc := scraper.NewScraper(scraper.Deps{
		Sessions:  sessions,
		Proxies:   proxy.NewRotator(cfg.Proxy.Endpoints, cfg.Proxy.Cooldown),
		Gate:      gate,
		Detector:  detector,
		Extractor: extractor.New(extractor.DefaultStrategies()),
	}, cfg.Scraper)

	return sc, cleanup, nil
}
