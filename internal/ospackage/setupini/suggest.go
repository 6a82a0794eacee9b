package setupini

import "github.com/sahilm/fuzzy"

const maxSuggestions = 5

// Suggest returns the closest package names to a name that matched nothing.
func Suggest(idx *Index, name string) []string {
	matches := fuzzy.Find(name, idx.Names())
	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
