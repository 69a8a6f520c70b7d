// Package render turns page names into HTML using the embedded templates.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"lfpappeals/web/internal/appeal"
)

//go:embed templates
var templateFS embed.FS

// Renderer holds one template set per page, each combining the shared
// layout and partials with the page's content block.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates. Every file under templates/pages
// becomes a page named after the file.
func New() (*Renderer, error) {
	return newRenderer(templateFS)
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	base, err := template.New("layout").Funcs(funcs).ParseFS(fsys, "templates/layout/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		page, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := page.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".html")] = page
	}
	return &Renderer{pages: pages}, nil
}

// Render executes the page into a buffer first so a template failure never
// leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data map[string]any) error {
	page, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("render: unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

var funcs = template.FuncMap{
	"money":         money,
	"date":          displayDate,
	"reasonLabel":   reasonLabel,
	"illPerson":     illPersonLabel,
	"fileSize":      fileSize,
	"attachmentsOf": func(a appeal.Appeal) []appeal.Attachment { return a.Attachments() },
}

func money(amount float64) string {
	return fmt.Sprintf("£%.2f", amount)
}

// displayDate formats a YYYY-MM-DD date as "1 May 2020".
func displayDate(value string) string {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return value
	}
	return t.Format("2 January 2006")
}

func reasonLabel(reason string) string {
	switch reason {
	case appeal.ReasonIllness:
		return "Illness"
	case appeal.ReasonOther:
		return "Other reason"
	}
	return reason
}

var illPersonLabels = map[string]string{
	"director":    "Company director or officer",
	"accountant":  "Company accountant or agent",
	"family":      "Family member",
	"employee":    "Company employee",
	"someoneElse": "Someone else",
}

func illPersonLabel(value string) string {
	if label, ok := illPersonLabels[value]; ok {
		return label
	}
	return value
}

func fileSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.0f KB", float64(size)/(1<<10))
	}
	return fmt.Sprintf("%d bytes", size)
}
