// Package models defines the domain types for kbview.
package models

import (
	"errors"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kbview/internal/apperr"
)

// Record is one row of the knowledge-base table.
type Record struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Date   string `json:"date"`
	Source string `json:"source"`
	InUse  bool   `json:"in_use"`
}

// RecordFields carries the user-editable fields of a record.
// InUse is optional; nil keeps the default (false on add, unchanged on edit).
type RecordFields struct {
	Title  string `json:"title" yaml:"title"`
	Type   string `json:"type" yaml:"type"`
	Date   string `json:"date" yaml:"date"`
	Source string `json:"source" yaml:"source"`
	InUse  *bool  `json:"in_use,omitempty" yaml:"in_use"`
}

// Normalize trims surrounding whitespace from every text field.
func (f RecordFields) Normalize() RecordFields {
	f.Title = strings.TrimSpace(f.Title)
	f.Type = strings.TrimSpace(f.Type)
	f.Date = strings.TrimSpace(f.Date)
	f.Source = strings.TrimSpace(f.Source)
	return f
}

// Validate checks that every required field is non-empty. The returned error
// is an *apperr.ValidationError listing the missing fields in sorted order.
func (f RecordFields) Validate() error {
	n := f.Normalize()
	err := validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.Required),
		validation.Field(&n.Type, validation.Required),
		validation.Field(&n.Date, validation.Required),
		validation.Field(&n.Source, validation.Required),
	)
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make([]string, 0, len(errs))
	for name := range errs {
		fields = append(fields, name)
	}
	slices.Sort(fields)
	return &apperr.ValidationError{Fields: fields}
}

// Category values used by the dashboard's filter dropdown.
const (
	CategoryAll                = ""
	CategoryPost               = "Post"
	CategorySocialMediaAccount = "Social Media Account"
	CategoryArticle            = "Article"
	CategoryDocument           = "Document"
	CategoryWebsite            = "Website"
)

// Categories lists the selectable filter values, without the "no filter" sentinel.
var Categories = []string{
	CategoryPost,
	CategorySocialMediaAccount,
	CategoryArticle,
	CategoryDocument,
	CategoryWebsite,
}

// SortKey names the record field a table is ordered by.
type SortKey string

const (
	SortNone   SortKey = ""
	SortTitle  SortKey = "title"
	SortType   SortKey = "type"
	SortDate   SortKey = "date"
	SortSource SortKey = "source"
	SortInUse  SortKey = "inUse"
)

// ParseSortKey maps a user-supplied column name to a SortKey.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(s); k {
	case SortNone, SortTitle, SortType, SortDate, SortSource, SortInUse:
		return k, true
	}
	if strings.EqualFold(s, "in_use") {
		return SortInUse, true
	}
	return SortNone, false
}

// Direction is the sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)
