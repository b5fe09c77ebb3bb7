package scraper

import (
	"errors"

	"github.com/use-agent/shopee-scraper/models"
)

// Assemble builds the response for an extracted product. A product without
// a title is a failure regardless of the other fields.
func Assemble(p *models.Product) *models.ScrapeResponse {
	if p == nil || p.Title == nil {
		return AssembleError(models.NewScrapeError(models.ErrCodeExtraction, "product title not found", nil))
	}
	return &models.ScrapeResponse{
		Success: true,
		Data:    p,
		Message: models.MessageScraped,
	}
}

// AssembleError builds the failure response for err. The message always
// starts with the failure kind.
func AssembleError(err error) *models.ScrapeResponse {
	if err == nil {
		err = errors.New("scrape failed without a reason")
	}
	return models.NewErrorResponse(models.AsScrapeError(err))
}
