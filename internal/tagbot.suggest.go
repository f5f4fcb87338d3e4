package internal

import (
	"sort"
	"strings"
)

// SimilarNames returns up to max candidates within edit distance of target,
// closest first. Ties keep candidate order. Comparison ignores case.
func SimilarNames(target string, candidates []string, max int) []string {
	if len(candidates) == 0 || max <= 0 {
		return nil
	}

	threshold := len(target) / 2
	if threshold < SuggestMinDistance {
		threshold = SuggestMinDistance
	}

	type scored struct {
		name     string
		distance int
	}

	lowered := strings.ToLower(target)
	var similar []scored
	for _, candidate := range candidates {
		if d := levenshtein(lowered, strings.ToLower(candidate)); d <= threshold {
			similar = append(similar, scored{name: candidate, distance: d})
		}
	}
	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].distance < similar[j].distance
	})

	if len(similar) > max {
		similar = similar[:max]
	}
	names := make([]string, len(similar))
	for i, s := range similar {
		names[i] = s.name
	}
	return names
}

// FormatSuggestions renders "did you mean" text, or "" for no suggestions.
//
//	did you mean 'faq'?
//	did you mean 'faq', 'fax' or 'fab'?
func FormatSuggestions(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return SuggestPrefix + quote(names[0]) + "?"
	}

	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	last := len(quoted) - 1
	return SuggestPrefix + strings.Join(quoted[:last], ", ") + " or " + quoted[last] + "?"
}

func quote(s string) string {
	return "'" + s + "'"
}

// levenshtein counts single-rune edits between a and b using two rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
