package web

import (
	"net/url"
	"strconv"
	"sync"

	"github.com/starford/kbview/internal/models"
	"github.com/starford/kbview/internal/tableview"
)

// Board serializes access to a table controller so concurrent requests act as
// one user clicking through the page.
type Board struct {
	mu  sync.Mutex
	ctl *tableview.Controller
}

// NewBoard wraps ctl.
func NewBoard(ctl *tableview.Controller) *Board {
	return &Board{ctl: ctl}
}

// Page returns the current derived page.
func (b *Board) Page() tableview.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctl.Page()
}

// Apply moves the view to match query parameters q, category, sort, dir, and
// page. Absent parameters leave that part of the view unchanged. Unknown
// sort keys are ignored.
func (b *Board) Apply(q url.Values) tableview.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q.Has("q") && q.Get("q") != b.ctl.State().Search {
		b.ctl.SetSearchTerm(q.Get("q"))
	}
	if q.Has("category") && q.Get("category") != b.ctl.State().Category {
		b.ctl.SetCategoryFilter(q.Get("category"))
	}
	if key, ok := models.ParseSortKey(q.Get("sort")); ok && q.Has("sort") {
		if key != b.ctl.State().SortKey {
			b.ctl.SortBy(key)
		}
		dir := models.Direction(q.Get("dir"))
		if key != models.SortNone && (dir == models.Ascending || dir == models.Descending) && dir != b.ctl.State().Direction {
			b.ctl.SortBy(key)
		}
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n != b.ctl.State().Page {
		b.ctl.SetPage(n)
	}
	return b.ctl.Page()
}

// SortBy toggles ordering on field.
func (b *Board) SortBy(field models.SortKey) tableview.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctl.SortBy(field)
}

// Add appends a record.
func (b *Board) Add(f models.RecordFields) (models.Record, tableview.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctl.AddRecord(f)
}

// Update edits a record.
func (b *Board) Update(id string, f models.RecordFields) (models.Record, tableview.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctl.UpdateRecord(id, f)
}

// Remove deletes a record.
func (b *Board) Remove(id string) tableview.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctl.RemoveRecord(id)
}

// Toggle flips a record's in-use flag.
func (b *Board) Toggle(id string) tableview.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctl.ToggleInUse(id)
}

// Record looks up a record by id.
func (b *Board) Record(id string) (models.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctl.Record(id)
}
