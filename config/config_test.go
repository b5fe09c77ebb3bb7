package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 2, cfg.Browser.MaxSessions)
	assert.Equal(t, 120*time.Second, cfg.Scraper.NavigationTimeout)
	assert.Equal(t, 240*time.Second, cfg.Captcha.MaxWait)
	assert.Equal(t, time.Second, cfg.Captcha.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Scraper.SettleDelay)
	assert.Equal(t, 5*time.Second, cfg.Scraper.PostCaptchaDelay)
	assert.Equal(t, 30*time.Second, cfg.Scraper.SnapshotTimeout)
	assert.Contains(t, cfg.Scraper.AllowedDomains, "shopee.tw")
	assert.Empty(t, cfg.Proxy.Endpoints)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCRAPER_MAX_SESSIONS", "5")
	t.Setenv("SCRAPER_HEADLESS", "true")
	t.Setenv("SCRAPER_NAV_TIMEOUT", "30s")
	t.Setenv("SCRAPER_ALLOWED_DOMAINS", "shopee.sg, shopee.ph ,")

	cfg := Load()

	assert.Equal(t, 5, cfg.Browser.MaxSessions)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Scraper.NavigationTimeout)
	assert.Equal(t, []string{"shopee.sg", "shopee.ph"}, cfg.Scraper.AllowedDomains)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SCRAPER_MAX_SESSIONS", "many")
	t.Setenv("SCRAPER_CAPTCHA_MAX_WAIT", "soon")

	cfg := Load()

	assert.Equal(t, 2, cfg.Browser.MaxSessions)
	assert.Equal(t, 240*time.Second, cfg.Captcha.MaxWait)
}

func TestLoadProxyEndpoints(t *testing.T) {
	t.Setenv("SCRAPER_PROXY_SERVER", "http://primary:8000")
	t.Setenv("SCRAPER_PROXY_USERNAME", "user")
	t.Setenv("SCRAPER_PROXY_PASSWORD", "pass")
	t.Setenv("SCRAPER_PROXY_2_SERVER", "http://pool-two:9000")
	t.Setenv("SCRAPER_PROXY_3_USERNAME", "orphan")

	cfg := Load()

	require.Len(t, cfg.Proxy.Endpoints, 2)
	assert.Equal(t, ProxyEndpoint{Server: "http://primary:8000", Username: "user", Password: "pass"}, cfg.Proxy.Endpoints[0])
	assert.True(t, cfg.Proxy.Endpoints[0].HasAuth())
	assert.Equal(t, "http://pool-two:9000", cfg.Proxy.Endpoints[1].Server)
	assert.False(t, cfg.Proxy.Endpoints[1].HasAuth())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero sessions",
			mutate:  func(c *Config) { c.Browser.MaxSessions = 0 },
			wantErr: "SCRAPER_MAX_SESSIONS",
		},
		{
			name:    "poll longer than wait",
			mutate:  func(c *Config) { c.Captcha.PollInterval = 10 * time.Minute },
			wantErr: "SCRAPER_CAPTCHA_POLL_INTERVAL",
		},
		{
			name:    "auth without keys",
			mutate:  func(c *Config) { c.Auth.Enabled = true },
			wantErr: "SCRAPER_API_KEYS",
		},
		{
			name:    "api key without extension",
			mutate:  func(c *Config) { c.Captcha.APIKey = "k" },
			wantErr: "SCRAPER_CAPTCHA_EXTENSION_DIR",
		},
		{
			name:    "no domains",
			mutate:  func(c *Config) { c.Scraper.AllowedDomains = nil },
			wantErr: "SCRAPER_ALLOWED_DOMAINS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
