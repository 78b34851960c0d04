// Package web embeds the globe page and the HTML fragments rendered by the
// shell handlers.
package web

import "embed"

// FS holds templates/*.html (pages) and templates/fragments/*.html.
//
//go:embed templates
var FS embed.FS

// Patterns are the template globs parsed from FS.
var Patterns = []string{"templates/*.html", "templates/fragments/*.html"}
