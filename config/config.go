package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Proxy     ProxyConfig
	Captcha   CaptchaConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how each per-request browser is launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless. The captcha
	// extension only works in a visible browser.
	Headless bool // default: false

	// MaxSessions is the ceiling on concurrently open browser sessions.
	MaxSessions int // default: 2

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent overrides the browser's user agent. Empty keeps the native one.
	UserAgent string

	// AcceptLanguage is sent as the Accept-Language header and navigator.languages.
	AcceptLanguage string // default: "zh-TW,zh;q=0.9,en;q=0.8"

	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// BlockedResourceTypes lists resource types to block (Image, Stylesheet,
	// Font, Media, Script). default: none
	BlockedResourceTypes []string
}

// ProxyEndpoint is one upstream proxy. It is read-only after Load.
type ProxyEndpoint struct {
	Server   string // e.g. "http://gate.example.com:9000"
	Username string
	Password string
}

// HasAuth reports whether the endpoint needs credentials.
func (p ProxyEndpoint) HasAuth() bool {
	return p.Username != "" || p.Password != ""
}

// ProxyConfig lists the proxies requests may be routed through.
type ProxyConfig struct {
	// Endpoints holds the primary proxy followed by the numbered pool.
	Endpoints []ProxyEndpoint

	// DialTimeout bounds the reachability check done before launch.
	DialTimeout time.Duration // default: 10s

	// Cooldown is how long a failed endpoint is skipped by rotation.
	Cooldown time.Duration // default: 5m
}

// CaptchaConfig controls the captcha gate and the solver extension.
type CaptchaConfig struct {
	// ExtensionDir is the unpacked solver extension. Empty disables the solver.
	ExtensionDir string

	// APIKey is injected into the extension's scripts.
	APIKey string

	// MaxWait bounds how long the gate waits for the solver.
	MaxWait time.Duration // default: 240s

	// PollInterval is the gap between resolution checks.
	PollInterval time.Duration // default: 1s
}

// ScraperConfig controls the scrape pipeline.
type ScraperConfig struct {
	// NavigationTimeout bounds page load until content is ready.
	NavigationTimeout time.Duration // default: 120s

	// SettleDelay is the pause after navigation before the captcha check.
	SettleDelay time.Duration // default: 10s

	// PostCaptchaDelay is the pause after the captcha gate before extraction.
	PostCaptchaDelay time.Duration // default: 5s

	// SnapshotTimeout bounds each read of the rendered page.
	SnapshotTimeout time.Duration // default: 30s

	// AllowedDomains are the registrable domains product URLs may belong to.
	AllowedDomains []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 2
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultAllowedDomains are the Shopee storefront domains.
var DefaultAllowedDomains = []string{
	"shopee.tw", "shopee.sg", "shopee.co.id", "shopee.com.my", "shopee.co.th",
	"shopee.ph", "shopee.vn", "shopee.com.br", "shopee.com.mx", "shopee.com.co",
	"shopee.cl",
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxNumberedProxies is how many SCRAPER_PROXY_<n>_* slots are read.
const maxNumberedProxies = 9

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SCRAPER_HOST", "0.0.0.0"),
			Port: envIntOr("SCRAPER_PORT", 8000),
			Mode: envOr("SCRAPER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("SCRAPER_HEADLESS", false),
			MaxSessions:          envIntOr("SCRAPER_MAX_SESSIONS", 2),
			NoSandbox:            envBoolOr("SCRAPER_NO_SANDBOX", false),
			BrowserBin:           os.Getenv("SCRAPER_BROWSER_BIN"),
			UserAgent:            envOr("SCRAPER_USER_AGENT", defaultUserAgent),
			AcceptLanguage:       envOr("SCRAPER_ACCEPT_LANGUAGE", "zh-TW,zh;q=0.9,en;q=0.8"),
			ViewportWidth:        envIntOr("SCRAPER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:       envIntOr("SCRAPER_VIEWPORT_HEIGHT", 1080),
			BlockedResourceTypes: envSliceOr("SCRAPER_BLOCKED_RESOURCES", nil),
		},
		Proxy: ProxyConfig{
			Endpoints:   loadProxyEndpoints(),
			DialTimeout: envDurationOr("SCRAPER_PROXY_DIAL_TIMEOUT", 10*time.Second),
			Cooldown:    envDurationOr("SCRAPER_PROXY_COOLDOWN", 5*time.Minute),
		},
		Captcha: CaptchaConfig{
			ExtensionDir: os.Getenv("SCRAPER_CAPTCHA_EXTENSION_DIR"),
			APIKey:       os.Getenv("SCRAPER_CAPTCHA_API_KEY"),
			MaxWait:      envDurationOr("SCRAPER_CAPTCHA_MAX_WAIT", 240*time.Second),
			PollInterval: envDurationOr("SCRAPER_CAPTCHA_POLL_INTERVAL", time.Second),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("SCRAPER_NAV_TIMEOUT", 120*time.Second),
			SettleDelay:       envDurationOr("SCRAPER_SETTLE_DELAY", 10*time.Second),
			PostCaptchaDelay:  envDurationOr("SCRAPER_POST_CAPTCHA_DELAY", 5*time.Second),
			SnapshotTimeout:   envDurationOr("SCRAPER_SNAPSHOT_TIMEOUT", 30*time.Second),
			AllowedDomains:    envSliceOr("SCRAPER_ALLOWED_DOMAINS", DefaultAllowedDomains),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SCRAPER_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SCRAPER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SCRAPER_RATE_RPS", 1.0),
			Burst:             envIntOr("SCRAPER_RATE_BURST", 2),
		},
		Log: LogConfig{
			Level:  envOr("SCRAPER_LOG_LEVEL", "info"),
			Format: envOr("SCRAPER_LOG_FORMAT", "json"),
		},
	}
}

// Validate reports configuration that would make every request fail.
func (c *Config) Validate() error {
	var errs []error
	if c.Browser.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("SCRAPER_MAX_SESSIONS must be at least 1, got %d", c.Browser.MaxSessions))
	}
	if c.Scraper.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("SCRAPER_NAV_TIMEOUT must be positive"))
	}
	if c.Captcha.MaxWait <= 0 {
		errs = append(errs, errors.New("SCRAPER_CAPTCHA_MAX_WAIT must be positive"))
	}
	if c.Captcha.PollInterval <= 0 || c.Captcha.PollInterval > c.Captcha.MaxWait {
		errs = append(errs, errors.New("SCRAPER_CAPTCHA_POLL_INTERVAL must be positive and not exceed the max wait"))
	}
	if len(c.Scraper.AllowedDomains) == 0 {
		errs = append(errs, errors.New("SCRAPER_ALLOWED_DOMAINS must not be empty"))
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, errors.New("SCRAPER_AUTH_ENABLED requires SCRAPER_API_KEYS"))
	}
	if c.Captcha.APIKey != "" && c.Captcha.ExtensionDir == "" {
		errs = append(errs, errors.New("SCRAPER_CAPTCHA_API_KEY is set but SCRAPER_CAPTCHA_EXTENSION_DIR is empty"))
	}
	return errors.Join(errs...)
}

// loadProxyEndpoints reads SCRAPER_PROXY_* followed by SCRAPER_PROXY_1_* ..
// SCRAPER_PROXY_9_*. Slots without a server are skipped.
func loadProxyEndpoints() []ProxyEndpoint {
	var out []ProxyEndpoint
	if ep, ok := proxyFromEnv("SCRAPER_PROXY"); ok {
		out = append(out, ep)
	}
	for i := 1; i <= maxNumberedProxies; i++ {
		if ep, ok := proxyFromEnv("SCRAPER_PROXY_" + strconv.Itoa(i)); ok {
			out = append(out, ep)
		}
	}
	return out
}

func proxyFromEnv(prefix string) (ProxyEndpoint, bool) {
	server := strings.TrimSpace(os.Getenv(prefix + "_SERVER"))
	if server == "" {
		return ProxyEndpoint{}, false
	}
	return ProxyEndpoint{
		Server:   server,
		Username: os.Getenv(prefix + "_USERNAME"),
		Password: os.Getenv(prefix + "_PASSWORD"),
	}, true
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
