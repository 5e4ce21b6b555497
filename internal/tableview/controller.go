// Package tableview computes the visible page of the knowledge-base table from
// the record collection and the user's view parameters.
//
// A Controller is single-threaded: callers that share one across goroutines
// must serialize access themselves.
package tableview

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/kbview/internal/apperr"
	"github.com/starford/kbview/internal/models"
)

// DefaultPageSize is the number of rows per page when none is configured.
const DefaultPageSize = 3

// Renderer receives every freshly derived page.
type Renderer func(Page)

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize overrides DefaultPageSize. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLocale sets the collation locale used for text sorting.
func WithLocale(tag language.Tag) Option {
	return func(c *Controller) {
		c.locale = tag
	}
}

// WithRenderer registers the callback notified after each recompute.
func WithRenderer(r Renderer) Option {
	return func(c *Controller) {
		c.render = r
	}
}

// WithIDGenerator replaces the UUID generator used for new records.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// Controller holds the record collection and ViewState.
type Controller struct {
	records  []models.Record
	state    ViewState
	pageSize int
	locale   language.Tag
	collator *collate.Collator
	render   Renderer
	newID    func() string
	page     Page
}

// New creates a controller seeded with records, in the given order. Seed
// entries are validated the same way AddRecord validates its input.
func New(seed []models.RecordFields, opts ...Option) (*Controller, error) {
	c := &Controller{
		pageSize: DefaultPageSize,
		locale:   language.English,
		newID:    uuid.NewString,
		state: ViewState{
			Category:  models.CategoryAll,
			SortKey:   models.SortNone,
			Direction: models.Ascending,
			Page:      1,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.collator = collate.New(c.locale)

	c.records = make([]models.Record, 0, len(seed))
	for i, f := range seed {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("tableview: seed record %d: %w", i, err)
		}
		c.records = append(c.records, c.build(f))
	}
	c.recompute()
	return c, nil
}

// SetSearchTerm replaces the search term and returns to the first page.
func (c *Controller) SetSearchTerm(term string) Page {
	c.state.Search = term
	c.state.Page = 1
	return c.notify()
}

// SetCategoryFilter replaces the category filter and returns to the first page.
// models.CategoryAll clears the filter.
func (c *Controller) SetCategoryFilter(category string) Page {
	c.state.Category = category
	c.state.Page = 1
	return c.notify()
}

// SortBy orders by field. Repeating the current field flips the direction;
// a new field starts ascending.
func (c *Controller) SortBy(field models.SortKey) Page {
	if field == c.state.SortKey {
		if c.state.Direction == models.Ascending {
			c.state.Direction = models.Descending
		} else {
			c.state.Direction = models.Ascending
		}
	} else {
		c.state.SortKey = field
		c.state.Direction = models.Ascending
	}
	return c.notify()
}

// SetPage moves to page n, clamped into [1, TotalPages].
func (c *Controller) SetPage(n int) Page {
	c.state.Page = n
	return c.notify()
}

// AddRecord appends a new record. On validation failure the collection is
// left untouched and an *apperr.ValidationError is returned.
func (c *Controller) AddRecord(fields models.RecordFields) (models.Record, Page, error) {
	if err := fields.Validate(); err != nil {
		return models.Record{}, c.page, err
	}
	r := c.build(fields)
	c.records = append(c.records, r)
	return r, c.notify(), nil
}

// UpdateRecord replaces the editable fields of the record with id.
func (c *Controller) UpdateRecord(id string, fields models.RecordFields) (models.Record, Page, error) {
	i := c.indexOf(id)
	if i < 0 {
		return models.Record{}, c.page, fmt.Errorf("tableview: record %s: %w", id, apperr.ErrNotFound)
	}
	if err := fields.Validate(); err != nil {
		return models.Record{}, c.page, err
	}
	f := fields.Normalize()
	r := &c.records[i]
	r.Title, r.Type, r.Date, r.Source = f.Title, f.Type, f.Date, f.Source
	if f.InUse != nil {
		r.InUse = *f.InUse
	}
	return *r, c.notify(), nil
}

// RemoveRecord deletes the record with id. Unknown ids are ignored.
func (c *Controller) RemoveRecord(id string) Page {
	if i := c.indexOf(id); i >= 0 {
		c.records = slices.Delete(c.records, i, i+1)
	}
	return c.notify()
}

// ToggleInUse flips the in-use flag of the record with id only.
func (c *Controller) ToggleInUse(id string) Page {
	if i := c.indexOf(id); i >= 0 {
		c.records[i].InUse = !c.records[i].InUse
	}
	return c.notify()
}

// Record returns the record with id.
func (c *Controller) Record(id string) (models.Record, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.records[i], true
	}
	return models.Record{}, false
}

// Records returns a copy of the full collection in insertion order.
func (c *Controller) Records() []models.Record {
	return slices.Clone(c.records)
}

// State returns the current view parameters.
func (c *Controller) State() ViewState {
	return c.state
}

// Page returns the most recently derived page.
func (c *Controller) Page() Page {
	return clonePage(c.page)
}

// PageSize returns the configured rows per page.
func (c *Controller) PageSize() int {
	return c.pageSize
}

func (c *Controller) build(f models.RecordFields) models.Record {
	f = f.Normalize()
	r := models.Record{
		ID:     c.newID(),
		Title:  f.Title,
		Type:   f.Type,
		Date:   f.Date,
		Source: f.Source,
	}
	if f.InUse != nil {
		r.InUse = *f.InUse
	}
	return r
}

func (c *Controller) indexOf(id string) int {
	return slices.IndexFunc(c.records, func(r models.Record) bool { return r.ID == id })
}

func (c *Controller) notify() Page {
	c.recompute()
	p := c.Page()
	if c.render != nil {
		c.render(clonePage(p))
	}
	return p
}

// recompute derives the visible page and clamps the stored page number so it
// never points past the last page.
func (c *Controller) recompute() {
	rows := filter(c.records, c.state.Search, c.state.Category)
	order(rows, c.state.SortKey, c.state.Direction, c.collator)

	total := totalPages(len(rows), c.pageSize)
	c.state.Page = clampPage(c.state.Page, total)

	start := (c.state.Page - 1) * c.pageSize
	end := min(start+c.pageSize, len(rows))

	c.page = Page{
		Records:       slices.Clone(rows[start:end]),
		State:         c.state,
		PageSize:      c.pageSize,
		TotalPages:    total,
		FilteredCount: len(rows),
		TotalCount:    len(c.records),
	}
}

func clonePage(p Page) Page {
	p.Records = slices.Clone(p.Records)
	return p
}
