// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render provides HTML template rendering for the web interface.
// Templates are embedded at compile time; each page template is paired
// with the base layout.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"admanager/internal/middleware"
	"admanager/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageData holds all data passed to page templates.
type PageData struct {
	Title     string          // Page title for <title> tag
	Section   string          // Active nav section (e.g., "home", "post")
	Session   *session.Data   // Current user session (nil if unauthenticated)
	CSRFToken string          // CSRF token for forms and fetch headers
	Data      map[string]any  // Page-specific data
	Flashes   []session.Flash // One-time notification messages
}

// Renderer handles template parsing and execution.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	sessions  *session.Store
}

// standaloneTemplates lists templates that render as full HTML pages
// without the base layout (they have their own <html>, <head>, etc.).
var standaloneTemplates = map[string]bool{
	"login": true,
}

// upstreamTimeLayout is how the upstream formats datetimes, e.g.
// "2020-06-20T20:57:42.000Z".
const upstreamTimeLayout = "2006-01-02T15:04:05.000Z"

// New creates a Renderer by parsing all templates from the embedded
// filesystem. Flashes pending in the session store are popped into every
// rendered page; sessions may be nil in tests.
func New(sessions *session.Store) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		sessions:  sessions,
		funcMap: template.FuncMap{
			"activeClass": func(current, target string) string {
				if current == target {
					return "active"
				}
				return ""
			},
			// formatDate renders an upstream ISO-8601 datetime string in a
			// readable form. Unparseable values pass through unchanged.
			"formatDate": func(s string) string {
				t, err := time.Parse(upstreamTimeLayout, s)
				if err != nil {
					return s
				}
				return t.Format("Jan 2, 2006 15:04")
			},
			// adPage converts an ad's 1-based search rank to the public
			// site's result page number (20 ads per page).
			"adPage": func(rank string) int {
				n, err := strconv.Atoi(rank)
				if err != nil || n < 1 {
					return 1
				}
				return (n-1)/20 + 1
			},
		},
	}

	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	// Parse each page template paired with the base layout.
	for _, e := range entries {
		if e.IsDir() || e.Name() == "base.html" {
			continue
		}
		name := e.Name()
		tmplName := strings.TrimSuffix(name, ".html")

		var tmpl *template.Template
		var parseErr error

		if standaloneTemplates[tmplName] {
			tmpl, parseErr = template.New(name).Funcs(r.funcMap).ParseFS(
				templateFS, "templates/"+name,
			)
		} else {
			tmpl, parseErr = template.New("base.html").Funcs(r.funcMap).ParseFS(
				templateFS, "templates/base.html", "templates/"+name,
			)
		}

		if parseErr != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, parseErr)
		}

		r.templates[tmplName] = tmpl
	}

	return r, nil
}

// Page renders a full page. The CSRF token and session are injected from
// the request so handlers only supply page-specific data.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	tmpl, ok := rn.templates[name]
	if !ok {
		http.Error(w, fmt.Sprintf("template %q not found", name), http.StatusInternalServerError)
		return
	}

	data.CSRFToken = middleware.GetCSRFToken(r)

	if data.Session == nil {
		data.Session = middleware.SessionFromCtx(r.Context())
	}

	if data.Flashes == nil && rn.sessions != nil {
		data.Flashes = rn.sessions.PopFlashes(r.Context(), r)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	execName := "base.html"
	// Standalone pages use their own root template (not base.html).
	if standaloneTemplates[name] {
		execName = name + ".html"
	}

	if err := executeTemplate(w, tmpl, execName, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// executeTemplate wraps template execution with error handling.
func executeTemplate(w io.Writer, tmpl *template.Template, name string, data any) error {
	return tmpl.ExecuteTemplate(w, name, data)
}
