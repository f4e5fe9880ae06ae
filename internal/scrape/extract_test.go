package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gridFixture = `<html><body><main><ul>
<li data-sku="5001112223">
  <a href="/pd/Asphalt-Shingle-Bundle/5001112223"><h3>Asphalt Shingle Bundle</h3></a>
  <span data-test="price">$23.98</span>
  <span data-test="was-price">Was $47.96</span>
  <span data-test="availability">12 in stock</span>
  <span class="badge">Clearance</span>
  <img src="/img/shingle.jpg"/>
</li>
<li>
  <a href="/pd/Gutter-Guard-4ft/5009998887?ref=grid"><h3>Gutter Guard 4ft</h3></a>
  <span data-test="price">$8.47</span>
  <img src="/img/guard.jpg"/>
</li>
<li>
  <a href="/pd/Banner-Not-A-Product/"><h3></h3></a>
</li>
</ul></main></body></html>`

func TestExtractCardsPrimary(t *testing.T) {
	records := ExtractCards(gridFixture, "https://www.example.com/c/roofing", "Roofing & Gutters", "97301", 0.4)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "5001112223", first.SKU)
	assert.Equal(t, "Asphalt Shingle Bundle", first.Title)
	assert.Equal(t, "$23.98", first.PriceText)
	assert.Equal(t, "Was $47.96", first.WasPriceText)
	assert.Equal(t, "12 in stock", first.Availability)
	assert.Equal(t, "https://www.example.com/pd/Asphalt-Shingle-Bundle/5001112223", first.ProductURL)
	assert.Equal(t, "https://www.example.com/img/shingle.jpg", first.ImageURL)
	assert.Equal(t, "Roofing & Gutters", first.Category)
	assert.Equal(t, "97301", first.Zip)
	assert.True(t, first.Clearance, "explicit marker text in the card")

	second := records[1]
	assert.Equal(t, "5009998887", second.SKU, "sku recovered from the product url")
	assert.False(t, second.Clearance, "no marker and no was-price")
}

func TestExtractCardsAlternateFallback(t *testing.T) {
	const alternate = `<html><body><section>
<div data-testid="product-tile">
  <a href="/pd/Deck-Screws-5lb/5004445556">Deck Screws 5lb</a>
  <span data-testid="price">$11.98</span>
  <del data-testid="was">$29.98</del>
</div>
</section></body></html>`

	records := ExtractCards(alternate, "https://www.example.com/c/hardware", "Hardware", "98501", 0.4)
	require.Len(t, records, 1)
	assert.Equal(t, "5004445556", records[0].SKU)
	assert.True(t, records[0].Clearance, "60 percent off exceeds the threshold")
}

func TestExtractCardsEmptyOnGarbage(t *testing.T) {
	assert.Empty(t, ExtractCards("<html><body><p>maintenance page</p></body></html>",
		"https://www.example.com/c/x", "X", "97301", 0.4))
}

func TestExtractEmbedded(t *testing.T) {
	const page = `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"ItemList","itemListElement":[
 {"@type":"Product","sku":"5003334445","name":"Vinyl Fence Panel",
  "url":"/pd/Vinyl-Fence-Panel/5003334445","image":"/img/fence.jpg",
  "offers":{"@type":"Offer","price":64.5,"availability":"https://schema.org/InStock"}},
 {"@type":"Product","sku":"5006667778","name":"Post Cap",
  "url":"/pd/Post-Cap/5006667778",
  "offers":{"@type":"Offer","price":2.25,"availability":"https://schema.org/OutOfStock"}}
]}
</script></head><body><div id="app"></div></body></html>`

	records := ExtractEmbedded(page, "https://www.example.com/c/fencing", "Fencing", "97301", 0.4)
	require.Len(t, records, 2)

	assert.Equal(t, "5003334445", records[0].SKU)
	assert.Equal(t, "Vinyl Fence Panel", records[0].Title)
	assert.Equal(t, "64.5", records[0].PriceText)
	assert.Equal(t, "in_stock", records[0].Availability)
	assert.Equal(t, "https://www.example.com/pd/Vinyl-Fence-Panel/5003334445", records[0].ProductURL)

	assert.Equal(t, "out_of_stock", records[1].Availability)
}

func TestExtractEmbeddedIgnoresMalformedJSON(t *testing.T) {
	const page = `<html><head>
<script type="application/json">{not json at all</script>
</head><body></body></html>`
	assert.Empty(t, ExtractEmbedded(page, "https://x", "X", "97301", 0.4))
}
