package utils

import (
	"math"
	"strings"
)

// NormalizeClinicalText trims, lowercases, and collapses internal whitespace
// runs to single spaces. Empty or whitespace-only input returns "". Free-text
// clinical fields go through this before they are fingerprinted so that
// formatting noise never breaks reuse.
func NormalizeClinicalText(value string) string {
	fields := strings.Fields(strings.ToLower(value))
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " ")
}

// BucketValue rounds a measurement to the nearest multiple of step. A nil
// input stays nil (the null bucket). Step 5 is used for blood pressure, heart
// rate, respiratory rate, and age; step 1 for oxygen saturation and
// temperature where clinical sensitivity is tighter.
func BucketValue(value *float64, step int) *int {
	if value == nil || step <= 0 {
		return nil
	}
	// Half-to-even rounding keeps fingerprints stable across runtimes.
	bucketed := int(math.RoundToEven(*value/float64(step))) * step
	return &bucketed
}
