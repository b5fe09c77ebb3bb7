package models

// Field names, in the order they are reported as missing.
const (
	FieldTitle       = "title"
	FieldPrice       = "price"
	FieldDescription = "description"
	FieldImageURLs   = "image_urls"
	FieldSeller      = "seller"
	FieldURL         = "url"
)

// FieldOrder is the fixed order fields are extracted and reported in.
var FieldOrder = []string{
	FieldTitle, FieldPrice, FieldDescription, FieldImageURLs, FieldSeller, FieldURL,
}

// Product is the structured data extracted from a product page.
//
// A nil field was not found on the page. Present fields are never empty
// after whitespace trimming.
type Product struct {
	Title       *string  `json:"title,omitempty"`
	Price       *string  `json:"price,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	Seller      *string  `json:"seller,omitempty"`
	URL         *string  `json:"url,omitempty"`

	// Missing lists the fields no strategy could find, in FieldOrder.
	Missing []string `json:"missing,omitempty"`
}

// Has reports whether the named field was found.
func (p *Product) Has(field string) bool {
	if p == nil {
		return false
	}
	switch field {
	case FieldTitle:
		return p.Title != nil
	case FieldPrice:
		return p.Price != nil
	case FieldDescription:
		return p.Description != nil
	case FieldImageURLs:
		return len(p.ImageURLs) > 0
	case FieldSeller:
		return p.Seller != nil
	case FieldURL:
		return p.URL != nil
	}
	return false
}

// FillMissing recomputes Missing from the field values.
func (p *Product) FillMissing() {
	p.Missing = nil
	for _, f := range FieldOrder {
		if !p.Has(f) {
			p.Missing = append(p.Missing, f)
		}
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
