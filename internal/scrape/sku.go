package scrape

import "regexp"

// SKU extraction falls back through URL patterns when the card carries no
// data attribute. Order matters: the /pd/ path form is the canonical one.
var skuURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/pd/[^/]+/(\d+)`),
	regexp.MustCompile(`/(\d{6,})(?:\?|$)`),
}

// SKUFromURL extracts a SKU from a product URL, or returns "".
func SKUFromURL(productURL string) string {
	for _, pattern := range skuURLPatterns {
		if match := pattern.FindStringSubmatch(productURL); match != nil {
			return match[1]
		}
	}
	return ""
}
