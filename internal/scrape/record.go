// Package scrape implements the store-context resolver and the category
// harvester on top of a chromedp browsing context. Extraction is attempted
// through a priority chain of strategies so that visual markup drift on the
// target storefront degrades to the next strategy instead of failing hard.
package scrape

// ProductRecord is one raw harvested listing row. Price fields keep their
// raw text: the observation pipeline owns authoritative coercion and
// validation, the harvester only parses enough to classify clearance.
type ProductRecord struct {
	SKU          string
	Title        string
	PriceText    string
	WasPriceText string
	Availability string
	ImageURL     string
	ProductURL   string
	Category     string
	Zip          string
	Clearance    bool
}

// dedupKey identifies "the same listing" within one harvest call.
type dedupKey struct {
	skuOrURL string
	url      string
}

func (r ProductRecord) key() dedupKey {
	id := r.SKU
	if id == "" {
		id = r.ProductURL
	}
	return dedupKey{skuOrURL: id, url: r.ProductURL}
}

// Dedup removes records sharing the same (SKU-or-URL, URL) pair, keeping the
// first occurrence.
func Dedup(records []ProductRecord) []ProductRecord {
	seen := make(map[dedupKey]struct{}, len(records))
	out := records[:0:0]
	for _, rec := range records {
		k := rec.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out
}
