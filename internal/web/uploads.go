package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kbview/internal/apperr"
	"github.com/starford/kbview/internal/checksum"
)

const defaultMaxUploadBytes = 50 << 20 // 50 MB

// uploadResponse is returned after a file is accepted for simulated upload.
type uploadResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// cleanName validates that the client-supplied filename is a plain name
// (no path separators, no traversal) and returns it.
func cleanName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// Upload handles POST /uploads (multipart/form-data, field "file"). The file
// is hashed and discarded; only its progress is simulated.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := cleanName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	digest, err := checksum.FromReader(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	u := h.uploads.Start(name, digest.Size, digest.Sum)
	slog.Info("upload accepted", slog.String("id", u.ID), slog.String("name", u.Name), slog.Int64("size", u.Size))

	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:       u.ID,
		Name:     u.Name,
		Size:     u.Size,
		Checksum: u.Checksum,
	})
}

// RemoveUpload handles DELETE /uploads/{id}.
func (h *Handler) RemoveUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.uploads.Remove(id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("remove upload failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUploads handles GET /uploads.
func (h *Handler) ListUploads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"uploads": h.uploads.List()})
}
