package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shopee-scraper/models"
)

// StatusClientClosedRequest is the non-standard status for a request whose
// client went away before the scrape finished.
const StatusClientClosedRequest = 499

// capacityRetryAfter is the Retry-After hint, in seconds, sent when every
// browser session is busy. A typical scrape holds its session this long.
const capacityRetryAfter = 30

// ProductScraper runs scrapes. *scraper.Scraper implements it.
type ProductScraper interface {
	Scrape(ctx context.Context, req *models.ScrapeRequest) *models.ScrapeResponse
	Stats() models.SessionStats
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Flow:
//  1. Bind the JSON body.
//  2. Run the pipeline; it always produces a response body.
//  3. Map a failure's code to the HTTP status.
func Scrape(sc ProductScraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(
				models.NewScrapeError(models.ErrCodeInvalidInput, "request body must be JSON with a url field", err),
			))
			return
		}

		// ── 2. Scrape ───────────────────────────────────────────────
		resp := sc.Scrape(c.Request.Context(), &req)

		// ── 3. Respond ──────────────────────────────────────────────
		if resp.Success {
			c.JSON(http.StatusOK, resp)
			return
		}
		code := ""
		if resp.Error != nil {
			code = resp.Error.Code
		}
		if code == models.ErrCodeCapacityExceeded {
			c.Header("Retry-After", strconv.Itoa(capacityRetryAfter))
		}
		c.JSON(mapErrorToStatus(code), resp)
	}
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeInvalidURL, models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeCapacityExceeded:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeProxy, models.ErrCodeNetwork,
		models.ErrCodeCaptchaFailed, models.ErrCodeExtraction:
		return http.StatusBadGateway // 502
	case models.ErrCodeNavigationTimeout, models.ErrCodeCaptchaTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeCanceled:
		return StatusClientClosedRequest // 499
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
