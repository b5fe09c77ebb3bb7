package models

// Messages returned on the happy path.
const (
	MessageScraped = "Product data scraped successfully"
)

// ScrapeResponse is the response for POST /api/v1/scrape.
//
// Success implies Data is non-nil with a title. Failure implies Data is nil
// and Message names the failure kind.
type ScrapeResponse struct {
	// Success indicates whether a product with at least a title was extracted.
	Success bool `json:"success"`

	// Data is the extracted product, null on failure.
	Data *Product `json:"data"`

	// Message is a human-readable outcome.
	Message string `json:"message"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing *TimingInfo `json:"timing,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent loading the page until content was ready.
	NavigationMs int64 `json:"navigation_ms"`

	// CaptchaMs is the time spent waiting on a captcha challenge.
	CaptchaMs int64 `json:"captcha_ms"`

	// ExtractionMs is the time spent reading and parsing the page.
	ExtractionMs int64 `json:"extraction_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports browser session usage against the ceiling.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
	Proxies        int `json:"proxies"`
}

// NewErrorResponse builds the failure body for e.
func NewErrorResponse(e *ScrapeError) *ScrapeResponse {
	return &ScrapeResponse{
		Success: false,
		Data:    nil,
		Message: e.UserMessage(),
		Error:   e.ToDetail(),
	}
}
