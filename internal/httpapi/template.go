package httpapi

import (
	_ "embed"
	"html/template"
	"io"
)

//go:embed results.html.tmpl
var resultsTemplateSource string

type resultsTemplate struct {
	t *template.Template
}

type resultsPage struct {
	Query string
	Rows  []queryResult
}

func mustLoadResultsTemplate() *resultsTemplate {
	t := template.Must(template.New("results").Parse(resultsTemplateSource))
	return &resultsTemplate{t: t}
}

func (rt *resultsTemplate) Render(w io.Writer, query string, rows []queryResult) error {
	return rt.t.Execute(w, resultsPage{Query: query, Rows: rows})
}
