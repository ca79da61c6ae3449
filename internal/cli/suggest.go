package cli

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Suggest ranks haystack by Levenshtein distance to needle, nearest first,
// dropping anything farther than maxDistance. Used to catch typos in a
// compiler basename that command.Parse otherwise wouldn't recognize, e.g.
// "gc" against the configured compiler list.
func Suggest(needle string, haystack []string, maxDistance int) []string {
	r := []rune(needle)
	candidates := make([]candidate, 0, len(haystack))
	for _, straw := range haystack {
		if straw == "" {
			continue
		}
		if d := levenshtein.DistanceForStrings(r, []rune(straw), levenshtein.DefaultOptions); d <= maxDistance {
			candidates = append(candidates, candidate{name: straw, distance: d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
	ranked := make([]string, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.name
	}
	return ranked
}

// PrettyPrintSuggestion renders Suggest's result as a single warning line,
// or "" when nothing was close enough to needle to be worth printing.
func PrettyPrintSuggestion(needle string, haystack []string, maxDistance int) string {
	matches := Suggest(needle, haystack, maxDistance)
	if len(matches) == 0 {
		return ""
	}
	if len(matches) == 1 {
		return "\nunrecognized compiler, did you mean " + matches[0] + "?"
	}
	return "\nunrecognized compiler, did you mean one of " + strings.Join(matches, ", ") + "?"
}

type candidate struct {
	name     string
	distance int
}
