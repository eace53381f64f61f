package equivalence

import (
	"regexp"
	"time"
)

// Placeholders for normalized property data.
const (
	PlaceholderDynamicKey   = "__DYNAMIC_KEY__"
	PlaceholderDynamicValue = "__DYNAMIC_VALUE__"
)

// HeuristicRules defines which property keys and values are expected to
// differ between two independently populated stores.
type HeuristicRules struct {
	// KeyPatterns identifies property keys whose values are volatile (e.g., "last_seen").
	KeyPatterns []*regexp.Regexp
	// CheckValueForUUID treats UUID-looking strings as generated values.
	CheckValueForUUID bool
	// CheckValueForTimestamp treats timestamps (strings or numbers) as volatile.
	CheckValueForTimestamp bool
	// TimestampFormats defines the layouts to try when parsing string timestamps.
	TimestampFormats []string
	// CheckValueForHighEntropy treats high-entropy strings (tokens, hashes) as volatile.
	CheckValueForHighEntropy bool
	// EntropyThreshold is the minimum Shannon entropy, in bits per character.
	EntropyThreshold float64
}

// DefaultRules covers the bookkeeping properties ingestion pipelines usually attach.
func DefaultRules() HeuristicRules {
	keyPatterns := []*regexp.Regexp{
		// Bookkeeping timestamps
		regexp.MustCompile(`(?i)^(created|updated|observed|fetched|last_seen|first_seen|seen)(_at)?$`),
		// Correlation/Request IDs
		regexp.MustCompile(`(?i)(correlation|request|trace|ingest)_?id$`),
		regexp.MustCompile(`(?i)nonce`),
		regexp.MustCompile(`(?i)^etag$`),
	}

	return HeuristicRules{
		KeyPatterns:              keyPatterns,
		CheckValueForUUID:        true,
		CheckValueForTimestamp:   true,
		TimestampFormats:         []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05.000Z"},
		CheckValueForHighEntropy: false,
		EntropyThreshold:         4.5,
	}
}

// StrictRules disables every heuristic, so all properties must match exactly.
func StrictRules() HeuristicRules {
	return HeuristicRules{}
}
