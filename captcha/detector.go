package captcha

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/shopee-scraper/browser"
)

// DefaultChallengeSelectors mark a captcha overlay on the page.
var DefaultChallengeSelectors = []string{
	`div[id="New Captcha"]`,
	`div[id="captchaMask"]`,
}

// DefaultErrorTexts appear when the challenge was rejected and the site
// served an error page instead of the product.
var DefaultErrorTexts = []string{
	"頁面無法顯示",
	"發生錯誤！請返回再試一次或回到主頁",
	"Page cannot be displayed",
	"An error occurred! Please go back and try again or return to the homepage",
	"驗證資訊失敗",
	"抱歉，目前發生了一些錯誤。請下載並登入蝦皮購物 App 以繼續使用。",
	"登出",
}

// DefaultBlockTexts appear on pages served to traffic the site has flagged.
var DefaultBlockTexts = []string{
	"驗證資訊失敗",
	"抱歉，我們無法驗證資訊，請稍等並再試一次。",
	"請登入蝦皮購物 App",
	"抱歉，目前發生了一些錯誤",
	"Please log in to Shopee Shopping App",
	"Sorry, some errors have occurred",
}

// minBodyText is the visible text length below which a page counts as blank.
const minBodyText = 100

type marker struct {
	selector string
	matcher  cascadia.Selector
}

// Detector recognises challenge overlays, solver error pages and block
// pages in a page snapshot.
type Detector struct {
	markers    []marker
	errorTexts []string
	blockTexts []string
}

// NewDetector compiles the challenge selectors.
func NewDetector(selectors, errorTexts, blockTexts []string) (*Detector, error) {
	d := &Detector{errorTexts: errorTexts, blockTexts: blockTexts}
	for _, sel := range selectors {
		m, err := cascadia.Compile(sel)
		if err != nil {
			return nil, fmt.Errorf("compile challenge selector %q: %w", sel, err)
		}
		d.markers = append(d.markers, marker{selector: sel, matcher: m})
	}
	return d, nil
}

// DefaultDetector returns a Detector with the built-in Shopee markers.
func DefaultDetector() *Detector {
	d, err := NewDetector(DefaultChallengeSelectors, DefaultErrorTexts, DefaultBlockTexts)
	if err != nil {
		panic(err)
	}
	return d
}

// ParsedPage is a parsed snapshot. Text excludes script and style contents.
type ParsedPage struct {
	Doc  *goquery.Document
	Text string
}

// Parse reads a snapshot into a ParsedPage.
func Parse(snap *browser.Snapshot) (*ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	text := doc.Find("body").Clone()
	text.Find("script, style, noscript, template").Remove()
	return &ParsedPage{Doc: doc, Text: strings.TrimSpace(text.Text())}, nil
}

// Challenge returns the first challenge selector present on the page.
func (d *Detector) Challenge(p *ParsedPage) (string, bool) {
	for _, m := range d.markers {
		if p.Doc.FindMatcher(m.matcher).Length() > 0 {
			return m.selector, true
		}
	}
	return "", false
}

// ErrorText returns the first solver error text visible on the page.
func (d *Detector) ErrorText(p *ParsedPage) (string, bool) {
	return firstContained(p.Text, d.errorTexts)
}

// BlockReason explains why a page looks like a block page rather than a
// product page.
func (d *Detector) BlockReason(p *ParsedPage) (string, bool) {
	if text, ok := firstContained(p.Text, d.blockTexts); ok {
		return fmt.Sprintf("page shows %q", text), true
	}
	if utf8.RuneCountInString(p.Text) < minBodyText {
		return "page is blank", true
	}
	return "", false
}

func firstContained(s string, needles []string) (string, bool) {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return n, true
		}
	}
	return "", false
}
