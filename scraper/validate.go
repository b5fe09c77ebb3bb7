package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/use-agent/shopee-scraper/models"
	"golang.org/x/net/publicsuffix"
)

// ValidateURL checks that raw is an absolute http(s) URL whose registrable
// domain is one of allowed. It runs before any browser work.
func ValidateURL(raw string, allowed []string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "url is required", nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "url is not well formed", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL,
			fmt.Sprintf("unsupported scheme %q, expected http or https", u.Scheme), nil)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "url has no host", nil)
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL,
			fmt.Sprintf("host %q is not a registrable domain", host), err)
	}
	for _, a := range allowed {
		if strings.EqualFold(domain, a) {
			return u, nil
		}
	}
	return nil, models.NewScrapeError(models.ErrCodeInvalidURL,
		fmt.Sprintf("domain %q is not a supported storefront", domain), nil)
}
