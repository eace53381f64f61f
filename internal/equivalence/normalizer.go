package equivalence

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

// Normalizer replaces volatile property keys and values with static
// placeholders so two stores can be compared on content.
type Normalizer struct {
	Rules HeuristicRules
}

// NewNormalizer creates a new normalizer with the given rules.
func NewNormalizer(rules HeuristicRules) *Normalizer {
	return &Normalizer{Rules: rules}
}

// NormalizeProperties converts props to plain Go data and applies the rules.
func (n *Normalizer) NormalizeProperties(props schemas.Properties) map[string]interface{} {
	plain := make(map[string]interface{}, len(props))
	for k, v := range props {
		plain[k] = v.Interface()
	}
	return n.normalizeMap(plain)
}

// Normalize recursively walks plain data and replaces dynamic keys and values.
func (n *Normalizer) Normalize(data interface{}) interface{} {
	if n.isValueDynamic(data) {
		return PlaceholderDynamicValue
	}

	switch v := data.(type) {
	case map[string]interface{}:
		return n.normalizeMap(v)
	case []interface{}:
		return n.normalizeSlice(v)
	case json.Number:
		// Canonical rendering, so 1.50 and 1.5 compare equal.
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		return data
	}
}

// normalizeMap drops dynamic keys and records how many there were under a
// single placeholder key.
func (n *Normalizer) normalizeMap(m map[string]interface{}) map[string]interface{} {
	normalizedMap := make(map[string]interface{}, len(m))
	dynamicKeys := 0

	for key, val := range m {
		if n.isKeyDynamic(key) {
			dynamicKeys++
			continue
		}
		normalizedMap[key] = n.Normalize(val)
	}

	if dynamicKeys > 0 {
		normalizedMap[PlaceholderDynamicKey] = dynamicKeys
	}
	return normalizedMap
}

func (n *Normalizer) normalizeSlice(s []interface{}) []interface{} {
	normalizedSlice := make([]interface{}, len(s))
	for i, val := range s {
		normalizedSlice[i] = n.Normalize(val)
	}
	return normalizedSlice
}

func (n *Normalizer) isKeyDynamic(key string) bool {
	for _, pattern := range n.Rules.KeyPatterns {
		if pattern.MatchString(key) {
			return true
		}
	}
	return false
}

func (n *Normalizer) isValueDynamic(val interface{}) bool {
	switch v := val.(type) {
	case string:
		return n.isStringValueDynamic(v)
	case json.Number:
		if !n.Rules.CheckValueForTimestamp {
			return false
		}
		f, err := v.Float64()
		return err == nil && isPlausibleUnixTimestamp(f)
	case float64:
		return n.Rules.CheckValueForTimestamp && isPlausibleUnixTimestamp(v)
	}
	return false
}

func (n *Normalizer) isStringValueDynamic(s string) bool {
	// Short strings are rarely generated identifiers.
	if len(s) < 10 {
		return false
	}

	if n.Rules.CheckValueForUUID {
		if _, err := uuid.Parse(s); err == nil {
			return true
		}
	}

	if n.Rules.CheckValueForTimestamp {
		for _, format := range n.Rules.TimestampFormats {
			if _, err := time.Parse(format, s); err == nil {
				return true
			}
		}
	}

	if n.Rules.CheckValueForHighEntropy && len(s) >= 16 {
		if calculateShannonEntropy(s) > n.Rules.EntropyThreshold {
			return true
		}
	}
	return false
}

// calculateShannonEntropy calculates the Shannon entropy of a string in bits per character.
func calculateShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freqMap := make(map[rune]int)
	for _, r := range s {
		freqMap[r]++
	}

	var entropy float64
	length := float64(len([]rune(s)))
	for _, count := range freqMap {
		probability := float64(count) / length
		entropy -= probability * math.Log2(probability)
	}
	return entropy
}

// isPlausibleUnixTimestamp checks if a number falls within a reasonable range for a Unix timestamp.
func isPlausibleUnixTimestamp(ts float64) bool {
	// Range: 2015-01-01 00:00:00 UTC to 2035-01-01 00:00:00 UTC
	const minTimestamp = 1420070400
	const maxTimestamp = 2051222400

	// Seconds, milliseconds and microseconds
	return (ts >= minTimestamp && ts <= maxTimestamp) ||
		(ts >= minTimestamp*1000 && ts <= maxTimestamp*1000) ||
		(ts >= minTimestamp*1000000 && ts <= maxTimestamp*1000000)
}
