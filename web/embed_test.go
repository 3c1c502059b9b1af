package web

import (
	"html/template"
	"io/fs"
	"testing"
)

func TestEmbeddedAssets(t *testing.T) {
	for _, name := range []string{"static/app.css", "static/app.js"} {
		if _, err := fs.Stat(StaticFS, name); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	funcs := template.FuncMap{
		"isDark": func(string) bool { return false },
		"add":    func(a, b int) int { return a + b },
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(TemplatesFS, "templates/*.html")
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	for _, name := range []string{"dashboard_page", "table_partial", "totals_cards", "error_page", "head", "foot"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %q not defined", name)
		}
	}
}
