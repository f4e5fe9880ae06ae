package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mwhittaker87/clearcrawl/internal/config"
)

func TestFilterCategories(t *testing.T) {
	all := []config.CategoryConfig{
		{Name: "Roofing & Gutters", URL: "https://x/c/roofing"},
		{Name: "Lumber & Composites", URL: "https://x/c/lumber"},
		{Name: "Fencing", URL: "https://x/c/fencing"},
	}

	got := filterCategories(all, []string{"Fencing", "Roofing & Gutters"})
	assert.Len(t, got, 2)
	assert.Equal(t, "Roofing & Gutters", got[0].Name)
	assert.Equal(t, "Fencing", got[1].Name)

	assert.Empty(t, filterCategories(all, []string{"Appliances"}))
}
