package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/kbview/internal/models"
	"github.com/starford/kbview/internal/tableview"
	"github.com/starford/kbview/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"pageURL":    pageURL,
	"add1":       func(n int) int { return n + 1 },
	"sub1":       func(n int) int { return n - 1 },
	"fieldNames": func() []string { return formFields },
	"fieldValue": fieldValue,
	"seq": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	},
	"sortMark": func(s tableview.ViewState, key string) string {
		if string(s.SortKey) != key {
			return ""
		}
		if s.Direction == models.Descending {
			return "▼"
		}
		return "▲"
	},
}).ParseFS(templateFS, "templates/index.html"))

// viewData is everything the knowledge base page template renders.
type viewData struct {
	Page       tableview.Page
	Categories []string
	Uploads    []upload.Upload
	Form       models.RecordFields
	Missing    map[string]bool
}

// SummaryJSON is compared by the page script against view.updated payloads
// to tell a replay of the rendered state from a real change.
func (d viewData) SummaryJSON() string {
	b, err := json.Marshal(d.Page.Summary())
	if err != nil {
		return ""
	}
	return string(b)
}

// formFields are the required text inputs of the add form, in display order.
var formFields = []string{"title", "type", "date", "source"}

// pageURL links to a page number; the rest of the view lives on the server.
func pageURL(page int) string {
	return "/?page=" + strconv.Itoa(page)
}

func fieldValue(f models.RecordFields, name string) string {
	switch name {
	case "title":
		return f.Title
	case "type":
		return f.Type
	case "date":
		return f.Date
	case "source":
		return f.Source
	}
	return ""
}

func renderPage(w http.ResponseWriter, status int, data viewData) {
	if data.Categories == nil {
		data.Categories = models.Categories
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, data); err != nil {
		slog.Error("render page failed", slog.String("error", err.Error()))
	}
}
