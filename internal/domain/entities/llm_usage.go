package entities

import "time"

// LLMUsage counts requests for one (model, API-key fingerprint, UTC day)
// triple. A new row appears per day; day rollover resets counting implicitly.
// The count is only ever mutated through the repository's atomic
// increment-if-below-ceiling operation.
type LLMUsage struct {
	Model          string    `json:"model" db:"model"`
	KeyFingerprint string    `json:"key_fingerprint" db:"key_fingerprint"`
	Day            string    `json:"day" db:"day"`
	Count          int       `json:"count" db:"count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// UsageDay formats a timestamp as the UTC calendar day used for quota keys.
func UsageDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
