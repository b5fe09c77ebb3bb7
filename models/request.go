package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the product page to scrape. It is not checked at binding: an
	// empty or malformed value is classified by the scraper as INVALID_URL.
	URL string `json:"url"`
}
