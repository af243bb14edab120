// Package template implements the template rendering collaborator the
// planner and applier treat as opaque: render(templateText, vars) -> string.
// It uses Go's text/template underneath, with each var bound as a bare
// zero-arg function so manifest authors write mustache-style {{user}}
// rather than the dot-prefixed {{.user}}.
package template

import (
	"bytes"
	"fmt"
	"text/template"
)

// Render expands templateText against vars. Values are plain strings — the
// caller (evaluator/planner) is responsible for keeping the sensitive bit
// out of band; Render itself is taint-agnostic.
func Render(templateText string, vars map[string]string) (string, error) {
	funcs := make(template.FuncMap, len(vars))
	for name, value := range vars {
		v := value
		funcs[name] = func() string { return v }
	}

	tmpl, err := template.New("keron").Funcs(funcs).Parse(templateText)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}
	return buf.String(), nil
}
