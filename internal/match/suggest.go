package match

import "sort"

// MinSuggestionScore is the similarity a candidate needs to be suggested.
const MinSuggestionScore = 0.5

// Suggest ranks candidates by similarity to name and returns at most limit
// of them scoring at least MinSuggestionScore. Ties keep candidate order.
func Suggest(name string, candidates []string, limit int) []string {
	type scored struct {
		name  string
		score float64
	}

	var ranked []scored

	for _, c := range candidates {
		if s := Similarity(name, c); s >= MinSuggestionScore && c != name {
			ranked = append(ranked, scored{name: c, score: s})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}

	return out
}
