package catalog

import (
	"sort"
	"strings"
)

// Uncategorized is the subject assigned to files sitting directly
// under the crawl root, with no intermediate folder.
const Uncategorized = "Uncategorized"

// SubjectOf derives the subject for a path relative to root: the first
// folder segment after stripping one leading root (plus at most one
// separator). The final segment is the file name and never counts as a
// subject, so a file directly under the root is Uncategorized.
func SubjectOf(p, root string) string {
	rest := strings.TrimPrefix(p, root)
	rest = strings.TrimPrefix(rest, "/")

	var segs []string
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) < 2 {
		return Uncategorized
	}
	return segs[0]
}

// Build attaches subjects to crawled materials, sorts the catalog for
// presentation by subject then name (case-sensitive collation), and
// returns the distinct subjects in lexicographic order. The input
// slice is not modified; an empty input yields an empty catalog and an
// empty subject list, which is a valid result, not an error.
func Build(materials []Material, root string) ([]Material, []string) {
	out := make([]Material, len(materials))
	copy(out, materials)

	seen := make(map[string]struct{})
	for i := range out {
		out[i].Subject = SubjectOf(out[i].Path, root)
		seen[out[i].Subject] = struct{}{}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})

	subjects := make([]string, 0, len(seen))
	for s := range seen {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	return out, subjects
}
