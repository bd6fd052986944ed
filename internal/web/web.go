// Package web serves the browser front end of the import service.
//
// The page is a single server-rendered form. It posts the CSV to POST /api/imports, follows the job over
// GET /ws and links the report from GET /api/reports/{token}; all state lives in the API, so the page itself
// only renders the configured defaults.
//
//	GET /    upload form with library, playlist, mode and threshold fields
package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plexlist/internal/models"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Defaults are the form values shown before the user edits anything.
type Defaults struct {
	Library   string
	Playlist  string
	Mode      models.SyncMode
	Threshold int
}

type pageData struct {
	Defaults
	Replace bool
	Server  string
}

// Page renders the upload form.
type Page struct {
	defaults Defaults
	server   string
	logger   *log.Logger
}

// NewPage creates the index page. server names the media server shown in the header.
func NewPage(defaults Defaults, server string, logger *log.Logger) *Page {
	if defaults.Mode == "" {
		defaults.Mode = models.ModeReplace
	}
	return &Page{defaults: defaults, server: server, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (p *Page) Routes() []string {
	return []string{"GET /{$}"}
}

// ServeHTTP renders the page into a buffer so template errors still produce a clean 500.
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	data := pageData{Defaults: p.defaults, Replace: p.defaults.Mode == models.ModeReplace, Server: p.server}
	if err := indexTemplate.Execute(&buf, data); err != nil {
		p.logger.Error("failed to render index", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
