package util

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

var (
	cacheMu sync.RWMutex
	cache   = map[string]*template.Template{}
)

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"fallback": func(fallback string, v any) any {
		if v == nil || v == "" {
			return fallback
		}
		return v
	},
	"bullets": func(items []string, fallback string) string {
		if len(items) == 0 {
			return "- " + fallback + "\n"
		}
		var b strings.Builder
		for _, it := range items {
			b.WriteString("- ")
			b.WriteString(it)
			b.WriteByte('\n')
		}
		return b.String()
	},
}

// RenderTemplate executes text as a text/template against data. Parsed
// templates are cached by their source, so constant templates are parsed
// once per process. Output is plain text and never escaped; missing map keys
// render as their zero value.
func RenderTemplate(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parse(text)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return b.String(), nil
}

func parse(text string) (*template.Template, error) {
	cacheMu.RLock()
	tmpl, ok := cache[text]
	cacheMu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := template.New("").Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	cacheMu.Lock()
	cache[text] = tmpl
	cacheMu.Unlock()
	return tmpl, nil
}
