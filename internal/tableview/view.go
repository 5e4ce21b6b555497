package tableview

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"

	"github.com/starford/kbview/internal/models"
)

// ViewState is the set of user-controlled parameters that select the visible records.
type ViewState struct {
	Search    string           `json:"search"`
	Category  string           `json:"category"`
	SortKey   models.SortKey   `json:"sort_key"`
	Direction models.Direction `json:"direction"`
	Page      int              `json:"page"`
}

// Page is the derived, render-ready subset of records.
type Page struct {
	Records       []models.Record `json:"records"`
	State         ViewState       `json:"state"`
	PageSize      int             `json:"page_size"`
	TotalPages    int             `json:"total_pages"`
	FilteredCount int             `json:"filtered_count"`
	TotalCount    int             `json:"total_count"`
}

// Summary is a Page without its records, small enough to broadcast.
type Summary struct {
	State         ViewState `json:"state"`
	TotalPages    int       `json:"total_pages"`
	FilteredCount int       `json:"filtered_count"`
	TotalCount    int       `json:"total_count"`
}

// Summary drops the records from p.
func (p Page) Summary() Summary {
	return Summary{
		State:         p.State,
		TotalPages:    p.TotalPages,
		FilteredCount: p.FilteredCount,
		TotalCount:    p.TotalCount,
	}
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.State.Page > 1 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.State.Page < p.TotalPages }

// matches reports whether r passes the search term and category filter.
// Both comparisons are case-insensitive substring checks.
func matches(r models.Record, term, category string) bool {
	if term != "" {
		t := strings.ToLower(term)
		if !strings.Contains(strings.ToLower(r.Title), t) &&
			!strings.Contains(strings.ToLower(r.Type), t) &&
			!strings.Contains(strings.ToLower(r.Source), t) {
			return false
		}
	}
	if category != models.CategoryAll &&
		!strings.Contains(strings.ToLower(r.Type), strings.ToLower(category)) {
		return false
	}
	return true
}

func filter(records []models.Record, term, category string) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if matches(r, term, category) {
			out = append(out, r)
		}
	}
	return out
}

// order sorts rs in place. Ascending is a stable sort; descending is the exact
// reverse of ascending so flipping direction always mirrors the rows.
func order(rs []models.Record, key models.SortKey, dir models.Direction, col *collate.Collator) {
	if key == models.SortNone {
		return
	}
	slices.SortStableFunc(rs, func(a, b models.Record) int {
		return compare(a, b, key, col)
	})
	if dir == models.Descending {
		slices.Reverse(rs)
	}
}

func compare(a, b models.Record, key models.SortKey, col *collate.Collator) int {
	switch key {
	case models.SortTitle:
		return col.CompareString(a.Title, b.Title)
	case models.SortType:
		return col.CompareString(a.Type, b.Type)
	case models.SortDate:
		return col.CompareString(a.Date, b.Date)
	case models.SortSource:
		return col.CompareString(a.Source, b.Source)
	case models.SortInUse:
		switch {
		case a.InUse == b.InUse:
			return 0
		case !a.InUse:
			return -1
		default:
			return 1
		}
	}
	return 0
}

// totalPages returns ceil(n/size) with a floor of one page.
func totalPages(n, size int) int {
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}
