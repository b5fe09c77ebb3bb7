package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shopee-scraper/browser"
	"github.com/use-agent/shopee-scraper/models"
)

// Strategies is the ordered strategy table, per field. Order is part of the
// contract: the first strategy that yields a value wins.
type Strategies struct {
	Title       []Strategy
	Price       []Strategy
	Description []Strategy
	Images      []ListStrategy
	Seller      []Strategy
}

// DefaultStrategies covers the known Shopee product page layouts.
func DefaultStrategies() Strategies {
	return Strategies{
		Title: []Strategy{
			Selector(".pdp-mod-product-badge-title"),
			Selector(".product-title"),
			Selector("h1.pdp-title"),
			Selector(`h1[data-testid="pdp-product-title"]`),
			Selector(".product-detail-panel__header__title"),
			ProductJSONLD("name"),
		},
		Price: []Strategy{
			Selector(".pdp-price"),
			Selector(".product-price"),
			Selector(".pdp-mod-product-price"),
			Selector(`div[data-testid="pdp-product-price"]`),
			Selector(".product-detail-panel__price"),
		},
		Description: []Strategy{
			Selector(".pdp-product-desc"),
			Selector(".product-description"),
			Selector(".pdp-mod-product-desc"),
			Selector(`div[data-testid="pdp-product-desc"]`),
			Selector(".product-detail-panel__description"),
			ProductJSONLD("description"),
		},
		Images: []ListStrategy{
			ImageSelector(".pdp-mod-product-image img", "src", "data-src"),
			ImageSelector(".product-image img", "src", "data-src"),
			ImageSelector(".pdp-product-image img", "src", "data-src"),
			ImageSelector(`img[data-testid="pdp-product-image"]`, "src", "data-src"),
			ImageSelector(".product-detail-panel__image img", "src", "data-src"),
			ProductJSONLDImages(),
		},
		Seller: []Strategy{
			Selector(".pdp-seller-info-name"),
			Selector(".product-seller-name"),
			Selector(".pdp-shop-name"),
			Selector(`div[data-testid="pdp-shop-name"]`),
			Selector(".product-detail-panel__seller"),
		},
	}
}

// Extractor turns a page snapshot into a Product. It holds no per-page
// state and is safe for concurrent use.
type Extractor struct {
	s Strategies
}

// New creates an Extractor with the given strategy table.
func New(s Strategies) *Extractor {
	return &Extractor{s: s}
}

// ExtractPage reads the page and extracts from it. A page that cannot be
// read is an EXTRACTION_FAILURE; missing fields are not errors.
func (e *Extractor) ExtractPage(ctx context.Context, page browser.Page) (*models.Product, *browser.Snapshot, error) {
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeExtraction, "could not read the product page", err)
	}
	product, err := e.Extract(snap)
	if err != nil {
		return nil, snap, err
	}
	return product, snap, nil
}

// Extract applies the strategy table to a snapshot. The same snapshot
// always yields the same Product.
func (e *Extractor) Extract(snap *browser.Snapshot) (*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "could not parse the product page", err)
	}

	base, _ := url.Parse(snap.URL)

	p := &models.Product{
		Title:       firstText(doc, models.FieldTitle, e.s.Title),
		Price:       firstText(doc, models.FieldPrice, e.s.Price),
		Description: firstText(doc, models.FieldDescription, e.s.Description),
		ImageURLs:   firstImages(doc, base, e.s.Images),
		Seller:      firstText(doc, models.FieldSeller, e.s.Seller),
		URL:         pageURL(base),
	}
	p.FillMissing()
	return p, nil
}

func firstText(doc *goquery.Document, field string, strategies []Strategy) *string {
	for _, s := range strategies {
		if v, ok := s.Find(doc); ok {
			slog.Debug("field extracted", "field", field, "strategy", s.Name)
			return &v
		}
	}
	return nil
}

// firstImages returns the URLs from the first strategy that yields at least
// one usable URL.
func firstImages(doc *goquery.Document, base *url.URL, strategies []ListStrategy) []string {
	for _, s := range strategies {
		if urls := normalizeImageURLs(s.Find(doc), base); len(urls) > 0 {
			slog.Debug("field extracted", "field", models.FieldImageURLs, "strategy", s.Name, "count", len(urls))
			return urls
		}
	}
	return nil
}

// normalizeImageURLs resolves refs against base, drops anything that is not
// http(s) and removes duplicates keeping first-seen order.
func normalizeImageURLs(refs []string, base *url.URL) []string {
	var out []string
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		u, err := url.Parse(strings.TrimSpace(ref))
		if err != nil {
			continue
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		abs := u.String()
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}

func pageURL(u *url.URL) *string {
	if u == nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return models.StringPtr(u.String())
}

// Describe summarises a product for logging.
func Describe(p *models.Product) string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("found=%d missing=%v images=%d",
		len(models.FieldOrder)-len(p.Missing), p.Missing, len(p.ImageURLs))
}
