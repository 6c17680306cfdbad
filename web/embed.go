// Package web provides embedded static assets (CSS, JS) for the web
// interface, served at /static/.
package web

import "embed"

// StaticFS embeds the web/static/ directory tree: the stylesheet and the
// cascading-select script used by the posting form.
//
//go:embed all:static
var StaticFS embed.FS
