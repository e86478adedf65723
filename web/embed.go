// Package web embeds the chat page template and its stylesheet.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"
)

//go:embed templates/*.html static/*
var files embed.FS

var funcs = template.FuncMap{
	"kb":    func(n int64) string { return fmt.Sprintf("%.1f KB", float64(n)/1024) },
	"clock": func(t time.Time) string { return t.Format("15:04") },
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "templates/*.html")
}

// StaticHandler serves the embedded static assets.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.FileServer(http.FS(sub))
}
