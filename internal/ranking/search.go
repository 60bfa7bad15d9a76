package ranking

import "strings"

// Search annotates every item with whether it matches q. Both parts are
// substring matches on normalized text. An inactive query returns nil so
// callers show the plain list. When nothing matches, one Draft built from
// the raw query is appended, visible, so the user can vote it into
// existence.
func Search(items []Item, q Query) []Match {
	if !q.Active() {
		return nil
	}
	name := Normalize(q.NamePart)
	artist := Normalize(q.ArtistPart)

	out := make([]Match, 0, len(items)+1)
	found := false
	for _, it := range items {
		visible := strings.Contains(Normalize(it.Name), name) &&
			strings.Contains(Normalize(it.Artist), artist)
		if visible {
			found = true
		}
		out = append(out, Match{Candidate: Persisted{Item: it}, Visible: visible})
	}
	if !found {
		out = append(out, Match{
			Candidate: Draft{Name: q.NamePart, Artist: q.ArtistPart},
			Visible:   true,
		})
	}
	return out
}

// Visible keeps only the matches flagged visible, preserving order.
func Visible(matches []Match) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Visible {
			out = append(out, m)
		}
	}
	return out
}
