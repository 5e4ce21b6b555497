package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kbview/internal/apperr"
	"github.com/starford/kbview/internal/models"
	"github.com/starford/kbview/internal/upload"
)

// Handler holds the knowledge base page routes.
type Handler struct {
	board    *Board
	uploads  *upload.Tracker
	maxBytes int64
}

// NewHandler creates a Handler. maxUploadBytes caps multipart bodies.
func NewHandler(board *Board, uploads *upload.Tracker, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{board: board, uploads: uploads, maxBytes: maxUploadBytes}
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page := h.board.Apply(r.URL.Query())
	renderPage(w, http.StatusOK, viewData{Page: page, Uploads: h.uploads.List()})
}

// SortBy handles POST /view/sort/{field}.
func (h *Handler) SortBy(w http.ResponseWriter, r *http.Request) {
	key, ok := models.ParseSortKey(chi.URLParam(r, "field"))
	if !ok {
		http.Error(w, "unknown sort field", http.StatusBadRequest)
		return
	}
	h.board.SortBy(key)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CreateRecord handles POST /records.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(w, r)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	rec, _, err := h.board.Add(fields)
	if err != nil {
		h.formError(w, fields, err)
		return
	}
	slog.Info("record added", slog.String("id", rec.ID), slog.String("title", rec.Title))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// UpdateRecord handles POST /records/{id}/edit.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields, err := parseFields(w, r)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, _, err := h.board.Update(id, fields); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.formError(w, fields, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DeleteRecord handles POST /records/{id}/delete.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	h.board.Remove(chi.URLParam(r, "id"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ToggleRecord handles POST /records/{id}/toggle.
func (h *Handler) ToggleRecord(w http.ResponseWriter, r *http.Request) {
	h.board.Toggle(chi.URLParam(r, "id"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// formError re-renders the page with the submitted values and the missing
// fields highlighted.
func (h *Handler) formError(w http.ResponseWriter, fields models.RecordFields, err error) {
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		slog.Error("record mutation failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	missing := make(map[string]bool, len(verr.Fields))
	for _, f := range verr.Fields {
		missing[f] = true
	}
	renderPage(w, http.StatusUnprocessableEntity, viewData{
		Page:    h.board.Page(),
		Uploads: h.uploads.List(),
		Form:    fields,
		Missing: missing,
	})
}

func parseFields(w http.ResponseWriter, r *http.Request) (models.RecordFields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		return models.RecordFields{}, err
	}
	f := models.RecordFields{
		Title:  r.PostForm.Get("title"),
		Type:   r.PostForm.Get("type"),
		Date:   r.PostForm.Get("date"),
		Source: r.PostForm.Get("source"),
	}
	if r.PostForm.Has("in_use") {
		v, err := strconv.ParseBool(r.PostForm.Get("in_use"))
		if err != nil {
			return models.RecordFields{}, err
		}
		f.InUse = &v
	}
	return f, nil
}
