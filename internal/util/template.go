package util

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// forbiddenDirectives are rejected because templates may come from the command line
var forbiddenDirectives = []string{"{{call", "{{define", "{{template", "{{block"}

// templateCache maps template source to its parsed form
var templateCache sync.Map

// RenderTemplate renders tmpl against data. Parsed templates are cached by
// source text, and missing map keys are an error.
func RenderTemplate(tmpl string, data any) (string, error) {
	t, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func parseTemplate(tmpl string) (*template.Template, error) {
	// Validation runs on every call so a cached template can never bypass it
	compact := strings.Join(strings.Fields(tmpl), "")
	for _, directive := range forbiddenDirectives {
		if strings.Contains(compact, directive) || strings.Contains(compact, strings.Replace(directive, "{{", "{{-", 1)) {
			return nil, fmt.Errorf("template contains forbidden directive: %s", strings.TrimPrefix(directive, "{{"))
		}
	}

	if cached, ok := templateCache.Load(tmpl); ok {
		return cached.(*template.Template), nil
	}

	t, err := template.New("view").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	actual, _ := templateCache.LoadOrStore(tmpl, t)
	return actual.(*template.Template), nil
}
