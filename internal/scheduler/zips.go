package scheduler

import "strconv"

// InferState classifies a ZIP code into its coverage region by prefix.
// 970-979 is Oregon, 980-994 is Washington, anything else is UNKNOWN.
func InferState(zip string) string {
	if len(zip) < 3 {
		return "UNKNOWN"
	}
	prefix, err := strconv.Atoi(zip[:3])
	if err != nil {
		return "UNKNOWN"
	}
	switch {
	case prefix >= 970 && prefix <= 979:
		return "OR"
	case prefix >= 980 && prefix <= 994:
		return "WA"
	default:
		return "UNKNOWN"
	}
}
