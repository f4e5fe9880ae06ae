package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhittaker87/clearcrawl/internal/scrape"
)

func TestValidateRecordAccepts(t *testing.T) {
	v, reason, ok := validateRecord(scrape.ProductRecord{
		PriceText:    "$23.98",
		WasPriceText: "Was $47.96",
	})
	require.True(t, ok)
	assert.Empty(t, reason)
	require.NotNil(t, v.Price)
	assert.InDelta(t, 23.98, *v.Price, 1e-9)
	require.NotNil(t, v.WasPrice)
	assert.InDelta(t, 47.96, *v.WasPrice, 1e-9)
	require.NotNil(t, v.PctOff)
	assert.InDelta(t, 0.5, *v.PctOff, 1e-9)
}

func TestValidateRecordRejectsUnparseable(t *testing.T) {
	_, reason, ok := validateRecord(scrape.ProductRecord{PriceText: "See store for price"})
	assert.False(t, ok)
	assert.Equal(t, ReasonInvalidPriceFormat, reason)
}

func TestValidateRecordRejectsOutOfRange(t *testing.T) {
	_, reason, ok := validateRecord(scrape.ProductRecord{PriceText: "$250,000.00"})
	assert.False(t, ok)
	assert.Equal(t, ReasonOutOfRangePrice, reason)

	_, reason, ok = validateRecord(scrape.ProductRecord{PriceText: "$0.00"})
	assert.False(t, ok)
	assert.Equal(t, ReasonOutOfRangePrice, reason)
}

func TestValidateRecordDropsBadWasPrice(t *testing.T) {
	v, _, ok := validateRecord(scrape.ProductRecord{
		PriceText:    "$9.98",
		WasPriceText: "compare at similar items",
	})
	require.True(t, ok)
	assert.Nil(t, v.WasPrice, "unparseable was-price drops silently")
	assert.Nil(t, v.PctOff)
}

func TestIsBuildingMaterialCategory(t *testing.T) {
	assert.True(t, IsBuildingMaterialCategory("Roofing & Gutters"))
	assert.True(t, IsBuildingMaterialCategory("Lumber & Composites"))
	assert.True(t, IsBuildingMaterialCategory("Fencing"))
	assert.False(t, IsBuildingMaterialCategory("Kitchen Appliances"))
	assert.False(t, IsBuildingMaterialCategory("Holiday Decorations"))
}

func TestCategoryAccepted(t *testing.T) {
	assert.True(t, categoryAccepted("", "Kitchen Appliances"))
	assert.True(t, categoryAccepted("all", "Kitchen Appliances"))
	assert.True(t, categoryAccepted("building_materials", "Roofing & Gutters"))
	assert.False(t, categoryAccepted("building_materials", "Kitchen Appliances"))
}

func TestCityFromStoreName(t *testing.T) {
	assert.Equal(t, "Salem", CityFromStoreName("Salem South"))
	assert.Equal(t, "Olympia", CityFromStoreName("Olympia"))
	assert.Equal(t, "Walla Walla", CityFromStoreName("Walla Walla NE"))
	assert.Equal(t, "South", CityFromStoreName("South"), "lone word is kept")
}
