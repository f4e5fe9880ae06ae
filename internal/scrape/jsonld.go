package scrape

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractEmbedded is the last-resort extraction strategy: it walks JSON blobs
// embedded in the page (ld+json, bootstrap state scripts) for product-shaped
// objects. Storefronts tend to keep these stable longer than visual markup.
func ExtractEmbedded(html, pageURL, category, zip string, pctThreshold float64) []ProductRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(pageURL)

	var records []ProductRecord
	doc.Find("script[type='application/ld+json'], script[type='application/json']").Each(func(_ int, s *goquery.Selection) {
		var blob any
		if err := json.Unmarshal([]byte(s.Text()), &blob); err != nil {
			return
		}
		walkProducts(blob, func(node map[string]any) {
			if rec, ok := recordFromNode(node, base, category, zip, pctThreshold); ok {
				records = append(records, rec)
			}
		})
	})
	return records
}

// walkProducts recursively visits every object in a decoded JSON tree and
// hands product-shaped ones to visit.
func walkProducts(node any, visit func(map[string]any)) {
	switch v := node.(type) {
	case map[string]any:
		if looksLikeProduct(v) {
			visit(v)
		}
		for _, child := range v {
			walkProducts(child, visit)
		}
	case []any:
		for _, child := range v {
			walkProducts(child, visit)
		}
	}
}

func looksLikeProduct(node map[string]any) bool {
	if t, ok := node["@type"].(string); ok && strings.EqualFold(t, "Product") {
		return true
	}
	_, hasSKU := node["sku"]
	_, hasItemID := node["itemId"]
	_, hasName := node["name"]
	_, hasTitle := node["title"]
	return (hasSKU || hasItemID) && (hasName || hasTitle)
}

func recordFromNode(node map[string]any, base *url.URL, category, zip string, pctThreshold float64) (ProductRecord, bool) {
	rec := ProductRecord{Category: category, Zip: zip}
	rec.SKU = stringField(node, "sku", "itemId", "productId")
	rec.Title = stringField(node, "name", "title")
	rec.ProductURL = absoluteURL(base, stringField(node, "url", "pdURL", "productUrl"))
	rec.ImageURL = absoluteURL(base, stringField(node, "image", "imageUrl"))

	if offers, ok := node["offers"].(map[string]any); ok {
		rec.PriceText = stringField(offers, "price")
		rec.Availability = availabilityFromSchema(stringField(offers, "availability"))
	}
	if rec.PriceText == "" {
		rec.PriceText = stringField(node, "price", "sellingPrice")
	}
	rec.WasPriceText = stringField(node, "wasPrice", "originalPrice", "listPrice")

	if rec.SKU == "" {
		rec.SKU = SKUFromURL(rec.ProductURL)
	}
	if rec.SKU == "" && rec.ProductURL == "" {
		return ProductRecord{}, false
	}
	if rec.Title == "" && rec.PriceText == "" {
		return ProductRecord{}, false
	}

	marker := stringField(node, "badge", "promoText", "offerDescription")
	var price, was *float64
	if v, ok := ParsePrice(rec.PriceText); ok {
		price = &v
	}
	if v, ok := ParsePrice(rec.WasPriceText); ok {
		was = &v
	}
	rec.Clearance = ClassifyClearance(marker, price, was, pctThreshold)
	return rec, true
}

// stringField returns the first present key rendered as a string. Numeric
// JSON values are common for prices and ids.
func stringField(node map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := node[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return trimFloat(v)
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	return strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
}

func availabilityFromSchema(value string) string {
	switch {
	case strings.Contains(value, "InStock"):
		return "in_stock"
	case strings.Contains(value, "OutOfStock"):
		return "out_of_stock"
	default:
		return value
	}
}
