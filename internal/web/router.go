// Package web serves the knowledge base page: the table view, its record
// forms, and the simulated upload area.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all page routes mounted.
// events, if non-nil, is mounted at GET /events.
func NewRouter(h *Handler, events http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Index)
	r.Post("/view/sort/{field}", h.SortBy)

	// Records.
	r.Post("/records", h.CreateRecord)
	r.Post("/records/{id}/edit", h.UpdateRecord)
	r.Post("/records/{id}/delete", h.DeleteRecord)
	r.Post("/records/{id}/toggle", h.ToggleRecord)

	// Simulated uploads.
	r.Get("/uploads", h.ListUploads)
	r.Post("/uploads", h.Upload)
	r.Delete("/uploads/{id}", h.RemoveUpload)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
