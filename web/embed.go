// Package web embeds the dashboard page templates and browser assets.
package web

import "embed"

// TemplatesFS holds the dashboard, table partial and error page templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.css and app.js, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
