package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/use-agent/shopee-scraper/browser"
	"github.com/use-agent/shopee-scraper/models"
)

// NavStatus classifies a page load.
type NavStatus int

const (
	NavSuccess NavStatus = iota
	NavTimedOut
	NavNetworkError
)

func (s NavStatus) String() string {
	switch s {
	case NavSuccess:
		return "success"
	case NavTimedOut:
		return "timed_out"
	case NavNetworkError:
		return "network_error"
	}
	return fmt.Sprintf("nav(%d)", int(s))
}

// NavigationOutcome is the result of Navigate.
type NavigationOutcome struct {
	Status  NavStatus
	Elapsed time.Duration
	Message string
	Err     error
}

// Navigate loads url and waits until content is ready, bounded by timeout.
// It never retries.
func Navigate(ctx context.Context, page browser.Page, url string, timeout time.Duration) NavigationOutcome {
	start := time.Now()

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := page.Navigate(navCtx, url)
	if err == nil {
		err = page.WaitContentReady(navCtx)
	}
	elapsed := time.Since(start)

	switch {
	case err == nil:
		return NavigationOutcome{Status: NavSuccess, Elapsed: elapsed}
	case ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || navCtx.Err() != nil):
		return NavigationOutcome{
			Status:  NavTimedOut,
			Elapsed: elapsed,
			Message: fmt.Sprintf("page did not finish loading within %s", timeout),
			Err:     err,
		}
	default:
		msg := err.Error()
		if reason, ok := browser.IsNavigationError(err); ok {
			msg = reason
		}
		return NavigationOutcome{Status: NavNetworkError, Elapsed: elapsed, Message: msg, Err: err}
	}
}

// ToError converts a failed outcome into the error surfaced to callers.
// Chromium reports an unreachable or rejecting proxy as a navigation
// failure, which is classified as PROXY_ERROR here.
func (o NavigationOutcome) ToError() error {
	switch o.Status {
	case NavSuccess:
		return nil
	case NavTimedOut:
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, o.Message, o.Err)
	}
	if isProxyFailure(o.Message) {
		return models.NewScrapeError(models.ErrCodeProxy, "proxy rejected the connection: "+o.Message, o.Err)
	}
	return models.NewScrapeError(models.ErrCodeNetwork, "could not reach the product page: "+o.Message, o.Err)
}

func isProxyFailure(reason string) bool {
	return strings.Contains(reason, "ERR_PROXY") ||
		strings.Contains(reason, "ERR_TUNNEL_CONNECTION_FAILED") ||
		strings.Contains(reason, "ERR_SOCKS")
}
