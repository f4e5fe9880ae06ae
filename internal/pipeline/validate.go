package pipeline

import (
	"regexp"
	"strings"

	"github.com/mwhittaker87/clearcrawl/internal/scrape"
)

// Price sanity bounds. Anything outside is treated as an extraction artifact
// rather than a real shelf price.
const (
	minValidPrice = 0.01
	maxValidPrice = 100_000
)

// Quarantine reasons.
const (
	ReasonInvalidPriceFormat = "invalid_price_format"
	ReasonOutOfRangePrice    = "out_of_range_price"
	ReasonMissingSKU         = "missing_sku"
)

// validated carries the coerced numeric fields for one accepted record.
type validated struct {
	Price    *float64
	WasPrice *float64
	PctOff   *float64
}

// validateRecord coerces the raw price text. A missing or unparseable
// current price rejects the record; a bad was-price is dropped silently
// since the current price alone is still a useful fact.
func validateRecord(rec scrape.ProductRecord) (validated, string, bool) {
	price, ok := scrape.ParsePrice(rec.PriceText)
	if !ok {
		return validated{}, ReasonInvalidPriceFormat, false
	}
	if price < minValidPrice || price > maxValidPrice {
		return validated{}, ReasonOutOfRangePrice, false
	}

	v := validated{Price: &price}
	if was, ok := scrape.ParsePrice(rec.WasPriceText); ok &&
		was >= minValidPrice && was <= maxValidPrice {
		v.WasPrice = &was
		if pct, ok := scrape.PctOff(price, was); ok {
			v.PctOff = &pct
		}
	}
	return v, "", true
}

var buildingMaterialKeywords = regexp.MustCompile(`(?i)\b(lumber|plywood|drywall|roofing|shingle|gutter|siding|insulation|concrete|cement|rebar|fencing|fence|deck|railing|molding|moulding|trim|door|window|plumbing|pipe|electrical|wire|conduit|flooring|tile|hardware|fastener|paint|stain)`)

// IsBuildingMaterialCategory reports whether a category name looks like a
// building-materials department. Used when the crawl is scoped by the
// building_materials filter.
func IsBuildingMaterialCategory(name string) bool {
	return buildingMaterialKeywords.MatchString(name)
}

// categoryAccepted applies the configured crawl scope filter.
func categoryAccepted(filter, category string) bool {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "", "all":
		return true
	case "building_materials":
		return IsBuildingMaterialCategory(category)
	default:
		return true
	}
}
