// Package templates handles HTML template rendering for Datastar SSE responses
// and the globe page.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
)

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	"value": FormatValue,
	"plain": FormatPlain,
}

// FormatValue renders a record value for display. Numbers get thousands
// separators; everything else prints as is.
func FormatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return humanize.CommafWithDigits(x, 2)
	case int:
		return humanize.Comma(int64(x))
	case string:
		return x
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// FormatPlain renders a value without grouping, so a year stays 2004.
func FormatPlain(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New parses every template matching patterns in fsys.
func New(fsys fs.FS, patterns ...string) (*Renderer, error) {
	tmpl, err := parse(fsys, patterns)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parse(fsys fs.FS, patterns []string) (*template.Template, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.html"}
	}
	return template.New("").Funcs(funcMap).ParseFS(fsys, patterns...)
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}
