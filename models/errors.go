package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeCapacityExceeded  = "CAPACITY_EXCEEDED"
	ErrCodeProxy             = "PROXY_ERROR"
	ErrCodeNavigationTimeout = "NAVIGATION_TIMEOUT"
	ErrCodeNetwork           = "NETWORK_ERROR"
	ErrCodeCaptchaFailed     = "CAPTCHA_FAILED"
	ErrCodeCaptchaTimeout    = "CAPTCHA_TIMEOUT"
	ErrCodeExtraction        = "EXTRACTION_FAILURE"

	ErrCodeBrowserLaunch = "BROWSER_LAUNCH_FAILED"
	ErrCodeCanceled      = "REQUEST_CANCELED"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// errorLabels are the human-readable kind names that prefix user messages.
var errorLabels = map[string]string{
	ErrCodeInvalidURL:        "Invalid URL",
	ErrCodeCapacityExceeded:  "Capacity exceeded",
	ErrCodeProxy:             "Proxy error",
	ErrCodeNavigationTimeout: "Navigation timeout",
	ErrCodeNetwork:           "Network error",
	ErrCodeCaptchaFailed:     "Captcha failed",
	ErrCodeCaptchaTimeout:    "Captcha timeout",
	ErrCodeExtraction:        "Extraction failure",
	ErrCodeBrowserLaunch:     "Browser launch failed",
	ErrCodeCanceled:          "Request canceled",
	ErrCodeInvalidInput:      "Invalid input",
	ErrCodeRateLimited:       "Rate limited",
	ErrCodeUnauthorized:      "Unauthorized",
	ErrCodeInternal:          "Internal error",
}

// Label returns the human-readable name of an error code.
func Label(code string) string {
	if l, ok := errorLabels[code]; ok {
		return l
	}
	return errorLabels[ErrCodeInternal]
}

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// UserMessage is the message shown to callers: the kind label followed by
// the detail, e.g. "Captcha timeout: challenge not solved within 4m0s".
func (e *ScrapeError) UserMessage() string {
	if e.Message == "" {
		return Label(e.Code)
	}
	return Label(e.Code) + ": " + e.Message
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsScrapeError unwraps err to a ScrapeError, wrapping unknown errors as
// INTERNAL_ERROR.
func AsScrapeError(err error) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(ErrCodeInternal, err.Error(), err)
}

// CodeOf returns the error code carried by err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsScrapeError(err).Code
}
