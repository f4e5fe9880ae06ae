package scrape

import "fmt"

// StoreContextError reports that the store binding flow failed for a ZIP.
// The scheduler skips the ZIP for the cycle.
type StoreContextError struct {
	Zip string
	Err error
}

func (e *StoreContextError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store context for zip %s: %v", e.Zip, e.Err)
	}
	return fmt.Sprintf("store context for zip %s failed", e.Zip)
}

func (e *StoreContextError) Unwrap() error { return e.Err }

// PageLoadError reports a navigation or timeout failure for a category URL.
type PageLoadError struct {
	URL string
	Err error
}

func (e *PageLoadError) Error() string {
	return fmt.Sprintf("page load %s: %v", e.URL, e.Err)
}

func (e *PageLoadError) Unwrap() error { return e.Err }

// SelectorChangedError reports that a page loaded but no extraction strategy
// produced usable records. This is the strongest signal that the target
// markup drifted and selectors need human recapture.
type SelectorChangedError struct {
	URL      string
	Category string
}

func (e *SelectorChangedError) Error() string {
	return fmt.Sprintf("no extraction strategy yielded records for category %q at %s", e.Category, e.URL)
}
