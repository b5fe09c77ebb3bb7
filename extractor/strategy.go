package extractor

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Strategy is one way of finding a text field. Find must be a pure function
// of the document.
type Strategy struct {
	Name string
	Find func(doc *goquery.Document) (string, bool)
}

// ListStrategy is one way of finding a list of raw image references.
type ListStrategy struct {
	Name string
	Find func(doc *goquery.Document) []string
}

// Selector matches css and yields the trimmed text of the first matching
// element whose text is not blank. It panics on an invalid selector so
// broken strategy tables fail at startup.
func Selector(css string) Strategy {
	m := cascadia.MustCompile(css)
	return Strategy{
		Name: css,
		Find: func(doc *goquery.Document) (string, bool) {
			var out string
			doc.FindMatcher(m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				out = strings.TrimSpace(s.Text())
				return out == ""
			})
			return out, out != ""
		},
	}
}

// ImageSelector matches css and yields, per element, the first value among
// attrs that can point at a remote image. Lazy-loading placeholders such as
// data: URIs are skipped so a later attribute can supply the real URL.
func ImageSelector(css string, attrs ...string) ListStrategy {
	m := cascadia.MustCompile(css)
	if len(attrs) == 0 {
		attrs = []string{"src"}
	}
	return ListStrategy{
		Name: css,
		Find: func(doc *goquery.Document) []string {
			var out []string
			doc.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
				for _, a := range attrs {
					if v, ok := s.Attr(a); ok && isImageRef(v) {
						out = append(out, strings.TrimSpace(v))
						return
					}
				}
			})
			return out
		},
	}
}

// ProductJSONLD yields a string property of the page's schema.org Product.
func ProductJSONLD(property string) Strategy {
	return Strategy{
		Name: "json-ld:" + property,
		Find: func(doc *goquery.Document) (string, bool) {
			product := findProductLD(doc)
			if product == nil {
				return "", false
			}
			s, _ := product[property].(string)
			s = strings.TrimSpace(s)
			return s, s != ""
		},
	}
}

// ProductJSONLDImages yields the image property of the page's schema.org
// Product, which may be a string, a list of strings or ImageObjects.
func ProductJSONLDImages() ListStrategy {
	return ListStrategy{
		Name: "json-ld:image",
		Find: func(doc *goquery.Document) []string {
			product := findProductLD(doc)
			if product == nil {
				return nil
			}
			return imageRefs(product["image"])
		},
	}
}

func imageRefs(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case map[string]any:
		if u, ok := t["url"].(string); ok {
			return []string{u}
		}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, imageRefs(item)...)
		}
		return out
	}
	return nil
}

// findProductLD returns the first JSON-LD node typed Product, searching
// top-level arrays and @graph containers. Malformed blocks are skipped.
func findProductLD(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		found = productNode(data)
		return found == nil
	})
	return found
}

func productNode(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if n := productNode(item); n != nil {
				return n
			}
		}
	case map[string]any:
		if isType(t["@type"], "Product") {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return productNode(graph)
		}
	}
	return nil
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// isImageRef reports whether v is a relative or http(s) reference.
func isImageRef(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	return u.Scheme == "" || u.Scheme == "http" || u.Scheme == "https"
}
