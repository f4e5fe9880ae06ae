package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`([-+]?)\s*\$?\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)`)

// ParsePrice converts a currency-like string ("$1,299.00", "Now 49.98") to a
// float. The second return is false when no number is present.
func ParsePrice(text string) (float64, bool) {
	match := numberPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	normalized := strings.ReplaceAll(match[2], ",", "")
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	if match[1] == "-" {
		value = -value
	}
	return value, true
}

// PctOff computes (was - price) / was. The second return is false unless both
// prices are positive and price < was, so the result is always in (0, 1).
func PctOff(price, was float64) (float64, bool) {
	if price <= 0 || was <= 0 || price >= was {
		return 0, false
	}
	return (was - price) / was, true
}

var clearanceKeywords = regexp.MustCompile(`(?i)\b(clearance|closeout|back aisle|final price|discontinued)\b`)

// IsClearanceText reports whether a marker string matches the clearance
// keyword pattern.
func IsClearanceText(text string) bool {
	return clearanceKeywords.MatchString(text)
}

// ClassifyClearance applies the deterministic precedence for the clearance
// flag: explicit marker text first, computed percent-off threshold second.
func ClassifyClearance(markerText string, price, was *float64, pctThreshold float64) bool {
	if markerText != "" && IsClearanceText(markerText) {
		return true
	}
	if price == nil || was == nil {
		return false
	}
	pct, ok := PctOff(*price, *was)
	if !ok {
		return false
	}
	return pct >= pctThreshold
}
