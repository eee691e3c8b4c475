// Package query shapes raw index hits into the response envelope served to
// clients: highlighted field projections, matched-field resolution and page
// location for paginated formats.
package query

import (
	"sort"
	"strings"

	"github.com/shipops/docsearch/internal/document"
)

// LocatePage returns the lowest-numbered page whose text contains the query
// as a case-insensitive substring. The second return is false when no page
// matches or the query is blank.
func LocatePage(pages []document.PageEntry, q string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" || len(pages) == 0 {
		return 0, false
	}

	ordered := make([]document.PageEntry, len(pages))
	copy(ordered, pages)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Page < ordered[j].Page })

	for _, p := range ordered {
		if strings.Contains(strings.ToLower(p.Text), needle) {
			return p.Page, true
		}
	}
	return 0, false
}
