package ingest

import "strings"

// PropertyKey derives a store-legal property key from a predicate IRI: the
// fragment after the last '#', else the segment after the last '/', else the
// whole predicate, with every non-alphanumeric character replaced by '_'.
// An empty result falls back to "prop" and a leading digit gets a "p_"
// prefix, so the key always starts with a letter or underscore and contains
// only [A-Za-z0-9_].
//
// The replacement is lossy on purpose: predicates whose local names differ
// only in punctuation ("has-name" vs "has_name") collide to the same key.
func PropertyKey(predicate string) string {
	local := predicate
	if i := strings.LastIndex(local, "#"); i >= 0 {
		local = local[i+1:]
	} else if i := strings.LastIndex(local, "/"); i >= 0 {
		local = local[i+1:]
	}

	var b strings.Builder
	b.Grow(len(local))
	for _, r := range local {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	key := b.String()
	if key == "" {
		return "prop"
	}
	if key[0] >= '0' && key[0] <= '9' {
		key = "p_" + key
	}
	return key
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
