package catalog

import "strings"

// Filter is one immutable combination of search text, subject
// selection, and kind selection. The zero value matches everything; an
// unset axis never excludes a material.
type Filter struct {
	Search  string
	Subject string
	Kind    Kind
}

// Matches reports whether m is visible under f. The three predicates
// combine with AND:
//
//   - search: lowercased trimmed Search is a substring of the
//     lowercased name, or Search is empty;
//   - subject: exact match, or Subject is unset;
//   - kind: exact match, or Kind is unset, with one special rule:
//     KindPDF also admits KindDocument (pdfs and generic documents
//     share one filter bucket). Every other kind, including an
//     explicit KindDocument, matches only itself.
func (f Filter) Matches(m Material) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(m.Name), q) {
			return false
		}
	}
	if f.Subject != "" && f.Subject != m.Subject {
		return false
	}
	switch f.Kind {
	case "":
	case KindPDF:
		if m.Kind != KindPDF && m.Kind != KindDocument {
			return false
		}
	default:
		if m.Kind != f.Kind {
			return false
		}
	}
	return true
}

// Apply evaluates f against the full catalog and returns the visible
// materials in their original order. Evaluation is fresh on every
// call; nothing is cached between filter states.
func (f Filter) Apply(materials []Material) []Material {
	out := make([]Material, 0, len(materials))
	for _, m := range materials {
		if f.Matches(m) {
			out = append(out, m)
		}
	}
	return out
}
