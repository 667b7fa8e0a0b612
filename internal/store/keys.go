package store

import (
	"sort"
	"strings"
)

// Key normalization maps user-supplied strings onto the canonical vertex
// "name" values. The functions are total and idempotent: applying one to its
// own output returns the same key.

// NormalizeIngredients canonicalizes an ingredient list: lower-cased,
// trimmed, split on commas, each token trimmed, sorted and rejoined. Any
// permutation or whitespace variant of the same ingredient set yields one
// key. Input that is empty after trimming yields "", which the store rejects
// rather than treating as a real key.
func NormalizeIngredients(raw string) string {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	if trimmed == "" {
		return ""
	}
	tokens := make([]string, 0, 4)
	for _, tok := range strings.Split(trimmed, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ",")
}

// NormalizeCuisine canonicalizes a cuisine name.
func NormalizeCuisine(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeRecipeID canonicalizes an external recipe identifier.
func NormalizeRecipeID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
