// ABOUTME: Token-set Jaccard similarity used by the FAQ tier.
// ABOUTME: Splits on whitespace; similarity is |intersection| / |union|.

package responder

import "strings"

// similarityThreshold is the Jaccard score an FAQ question must exceed to
// count as a match.
const similarityThreshold = 0.6

// jaccard computes token-set similarity between two texts. Empty token sets
// never match.
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}
