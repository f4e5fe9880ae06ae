package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhittaker87/clearcrawl/internal/config"
)

func TestStorefrontRoot(t *testing.T) {
	root, err := storefrontRoot([]config.CategoryConfig{
		{Name: "Roofing", URL: "https://www.example.com/c/roofing?offset=0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.com/", root)
}

func TestStorefrontRootRejectsRelative(t *testing.T) {
	_, err := storefrontRoot([]config.CategoryConfig{
		{Name: "Roofing", URL: "/c/roofing"},
	})
	assert.Error(t, err)
}

func TestStorefrontRootRequiresCategories(t *testing.T) {
	_, err := storefrontRoot(nil)
	assert.Error(t, err)
}
