package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractCards runs the DOM strategy chain over rendered HTML and returns the
// records from the first selector set that yields anything. pageURL resolves
// relative product links.
func ExtractCards(html, pageURL, category, zip string, pctThreshold float64) []ProductRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(pageURL)
	for _, sel := range cardSelectorChain {
		records := extractWith(doc, sel, base, category, zip, pctThreshold)
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

func extractWith(doc *goquery.Document, sel CardSelectors, base *url.URL, category, zip string, pctThreshold float64) []ProductRecord {
	var records []ProductRecord
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		rec := ProductRecord{Category: category, Zip: zip}

		link := card.Find(sel.Link).First()
		if href, ok := link.Attr("href"); ok {
			rec.ProductURL = absoluteURL(base, href)
		}
		rec.Title = cleanText(card.Find(sel.Title).First().Text())
		rec.PriceText = cleanText(firstPriceText(card, sel.Price))
		rec.WasPriceText = cleanText(card.Find(sel.WasPrice).First().Text())
		rec.Availability = cleanText(card.Find(sel.Availability).First().Text())
		if src, ok := card.Find(sel.Image).First().Attr("src"); ok {
			rec.ImageURL = absoluteURL(base, src)
		}
		rec.SKU = skuFromCard(card, sel, rec.ProductURL)

		if rec.ProductURL == "" && rec.SKU == "" {
			return
		}
		if rec.Title == "" && rec.PriceText == "" {
			return
		}
		rec.Clearance = classifyCard(card, rec, pctThreshold)
		records = append(records, rec)
	})
	return records
}

// firstPriceText prefers an element whose text actually parses as a price;
// price-shaped selectors often also match promo banners.
func firstPriceText(card *goquery.Selection, selector string) string {
	var text string
	card.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		candidate := s.Text()
		if candidate == "" {
			if label, ok := s.Attr("aria-label"); ok {
				candidate = label
			}
		}
		if _, ok := ParsePrice(candidate); ok {
			text = candidate
			return false
		}
		return true
	})
	return text
}

func skuFromCard(card *goquery.Selection, sel CardSelectors, productURL string) string {
	for _, attr := range sel.SKUAttrs {
		if v, ok := card.Attr(attr); ok && v != "" {
			return v
		}
		if v, ok := card.Find("[" + attr + "]").First().Attr(attr); ok && v != "" {
			return v
		}
	}
	return SKUFromURL(productURL)
}

func classifyCard(card *goquery.Selection, rec ProductRecord, pctThreshold float64) bool {
	marker := ""
	if IsClearanceText(card.Text()) {
		marker = card.Text()
	}
	var price, was *float64
	if v, ok := ParsePrice(rec.PriceText); ok {
		price = &v
	}
	if v, ok := ParsePrice(rec.WasPriceText); ok {
		was = &v
	}
	return ClassifyClearance(marker, price, was, pctThreshold)
}

func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
