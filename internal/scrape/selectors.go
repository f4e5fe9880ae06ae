package scrape

// Selectors are expected to need periodic human recapture as the storefront
// markup drifts; keeping them in one place makes that cheap.

// CardSelectors is one complete selector set for card-level extraction.
type CardSelectors struct {
	Card         string
	Title        string
	Price        string
	WasPrice     string
	Availability string
	Image        string
	Link         string
	SKUAttrs     []string
}

// primaryCards is tried first; alternateCards covers the storefront's
// periodic grid redesigns.
var primaryCards = CardSelectors{
	Card:         "main li:has(a[href*='/pd/']), main article:has(a[href*='/pd/']), main div[data-test*='product']:has(a[href*='/pd/'])",
	Title:        "a[href*='/pd/'], h3, h2",
	Price:        "[data-test*='price'], [data-automation-id*='price'], .price, .sale-price, [aria-label*='$']",
	WasPrice:     "[data-test*='was'], .was-price, .strike, [aria-label*='Was']",
	Availability: "[data-test*='availability'], [data-automation-id*='availability'], .availability, [aria-label*='stock']",
	Image:        "img",
	Link:         "a[href*='/pd/']",
	SKUAttrs:     []string{"data-sku", "data-product-id", "data-itemid"},
}

var alternateCards = CardSelectors{
	Card:         "section [data-test*='product'], section [data-testid*='product']",
	Title:        "a[href*='/pd/'], [data-test*='title']",
	Price:        "[data-testid*='price'], [aria-label^='$']",
	WasPrice:     "[data-testid*='was'], s, del",
	Availability: "[data-testid*='availability']",
	Image:        "img",
	Link:         "a[href*='/pd/']",
	SKUAttrs:     []string{"data-sku", "data-product-id"},
}

// cardSelectorChain is the fixed strategy order for DOM extraction.
var cardSelectorChain = []CardSelectors{primaryCards, alternateCards}

// nextButtonSelectors locate the pagination advance control.
var nextButtonSelectors = []string{
	"nav[aria-label='Pagination'] a[rel='next']",
	"button[aria-label='Next']",
	".pagination-next a",
}

// Store switcher flow locators, in priority order per step: primary CSS,
// role-based fallback, text fallback.
var (
	storeBadgeSelectors = []string{
		"header [aria-label*='My Store']",
		"header [data-test*='store']",
		"header a[href*='store-details']",
	}
	storeSwitcherSelectors = []string{
		"header [data-test*='store'] button",
		"header [aria-label*='My Store']",
		"a[href*='store-locator']",
	}
	zipInputSelectors = []string{
		"input[type='search']",
		"input[placeholder*='ZIP']",
		"input[placeholder*='city']",
	}
	storeResultSelectors = []string{
		"[data-store-id]",
		"li:has(a[href*='store-details'])",
	}
	storeSelectButtonSelectors = []string{
		"button[data-test*='select']",
		"button[aria-label*='Set as My Store']",
	}
)
