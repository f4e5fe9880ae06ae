package app

import (
	"fmt"
	"net/url"

	"github.com/mwhittaker87/clearcrawl/internal/config"
)

// storefrontRoot derives the retailer's home URL from the first category
// URL's origin. The resolver navigates there to reach the store switcher.
func storefrontRoot(categories []config.CategoryConfig) (string, error) {
	if len(categories) == 0 {
		return "", fmt.Errorf("at least one category is required")
	}
	u, err := url.Parse(categories[0].URL)
	if err != nil {
		return "", fmt.Errorf("parse category url %q: %w", categories[0].URL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("category url %q is not absolute", categories[0].URL)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}
