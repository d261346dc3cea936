// Package render holds the HTML templates of the front end.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	ginrender "github.com/gin-gonic/gin/render"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Pages is a gin HTMLRender with one template set per page, each wrapped in the shared layout.
type Pages struct {
	templates map[string]*template.Template
}

// New parses every page under templates/ together with the layout.
func New() (*Pages, error) {
	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	p := &Pages{templates: make(map[string]*template.Template)}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		t, err := template.Must(layout.Clone()).ParseFS(templateFS, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		p.templates[name] = t
	}
	return p, nil
}

// Instance implements gin's render.HTMLRender.
func (p *Pages) Instance(name string, data any) ginrender.Render {
	t, ok := p.templates[name]
	if !ok {
		panic(fmt.Sprintf("render: unknown page %q", name))
	}
	return ginrender.HTML{Template: t, Name: "layout.html", Data: data}
}

// Has reports whether a page template exists.
func (p *Pages) Has(name string) bool {
	_, ok := p.templates[name]
	return ok
}
