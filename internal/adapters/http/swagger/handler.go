// Package swagger serves the embedded OpenAPI document and a route index
// rendered from it.
package swagger

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
)

// Register attaches the API docs routes to mux. The index page is built once
// from OpenAPI and needs no network access.
//
//	GET /api-docs      -> HTML route index
//	GET /openapi.yaml  -> embedded OpenAPI document
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	page, pageErr := renderIndex(OpenAPI)

	mux.HandleFunc("GET /api-docs", func(w http.ResponseWriter, r *http.Request) {
		if pageErr != nil {
			http.Error(w, pageErr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})

	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}

// Operation is one method on one path of the document.
type Operation struct {
	Method  string
	Path    string
	Summary string
}

// methodOrder sorts operations on the same path.
var methodOrder = map[string]int{"get": 0, "post": 1, "put": 2, "patch": 3, "delete": 4}

// Operations lists the operations of an OpenAPI document by path then method.
func Operations(doc []byte) (title string, ops []Operation, err error) {
	root, err := yaml.Parser().Unmarshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("openapi: %w", err)
	}
	if info, ok := root["info"].(map[string]interface{}); ok {
		title, _ = info["title"].(string)
	}
	paths, ok := root["paths"].(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("openapi: no paths")
	}
	for path, v := range paths {
		item, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		for method, opv := range item {
			if _, known := methodOrder[method]; !known {
				continue
			}
			op := Operation{Method: strings.ToUpper(method), Path: path}
			if m, ok := opv.(map[string]interface{}); ok {
				op.Summary, _ = m["summary"].(string)
			}
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return methodOrder[strings.ToLower(ops[i].Method)] < methodOrder[strings.ToLower(ops[j].Method)]
	})
	return title, ops, nil
}

func renderIndex(doc []byte) ([]byte, error) {
	title, ops, err := Operations(doc)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	if err := indexTemplate.Execute(&b, struct {
		Title string
		Ops   []Operation
	}{title, ops}); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Title}} API</title>
    <style>
      body{font-family:sans-serif;margin:2em}
      td{padding:.3em .8em;border-bottom:1px solid #ddd}
      .m{font-family:monospace;font-weight:bold}
    </style>
  </head>
  <body>
    <h1>{{.Title}} API</h1>
    <p>Full schema: <a href="/openapi.yaml">openapi.yaml</a></p>
    <table id="operations">
      {{- range .Ops}}
      <tr><td class="m">{{.Method}}</td><td class="m">{{.Path}}</td><td>{{.Summary}}</td></tr>
      {{- end}}
    </table>
  </body>
</html>
`))
