// Package web holds the dashboard page served at "/".
package web

import (
	"embed"
	"html/template"
	"io"
	"strconv"

	"github.com/glycowatch/backend/internal/schema"
)

//go:embed templates/*.html
var templates embed.FS

var index = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"percent": func(v float64) string {
		return strconv.FormatFloat(100*v, 'f', 0, 64) + "%"
	},
}).ParseFS(templates, "templates/index.html"))

type PageData struct {
	Title            string
	Inputs           []schema.Range
	Threshold        float64
	AdvisorAvailable bool
}

func RenderIndex(w io.Writer, data PageData) error {
	return index.Execute(w, data)
}
