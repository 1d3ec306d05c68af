package fingerprint

// Similarity scores how close two token signatures are, in [0, 1].
// The acceptable algorithm and threshold are policy choices, so the cache
// takes this as a pluggable strategy rather than hard-coding one.
type Similarity interface {
	// Name identifies the strategy for logging and diagnostics.
	Name() string
	// Score returns 1.0 for identical signatures and 0.0 for disjoint ones.
	// Must be cheap: both inputs are bounded token sets.
	Score(a, b []string) float64
}

// TokenOverlap scores signatures by Jaccard similarity of their token sets.
// This is the default strategy: order-insensitive, O(len(a)+len(b)).
type TokenOverlap struct{}

func (TokenOverlap) Name() string { return "token-overlap" }

func (TokenOverlap) Score(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}

	intersection := 0
	for _, tok := range b {
		if _, ok := set[tok]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// EditDistance scores signatures by normalized word-level Levenshtein
// distance. Order-sensitive; stricter than TokenOverlap for reordered
// prompts. Cost is O(len(a)*len(b)) over bounded signatures.
type EditDistance struct{}

func (EditDistance) Name() string { return "edit-distance" }

func (EditDistance) Score(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	dist := levenshtein(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// levenshtein computes word-level edit distance using two rolling rows.
func levenshtein(a, b []string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
