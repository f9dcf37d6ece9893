package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	"reflect"
	"strings"
	"sync"
	texttpl "text/template"
)

//go:embed *.tmpl
var FS embed.FS

const ActivationMail = "activation_mail"

// defaultFn supports pipe usage: {{ .Value | default "Fallback" }}
func defaultFn(fallback any, value any) any {
	switch x := value.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
		return x
	case nil:
		return fallback
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() || rv.IsZero() {
			return fallback
		}
		return value
	}
}

var funcs = map[string]any{
	"default": defaultFn,
}

// mailSet holds the parsed parts of one email: <name>.subject.tmpl,
// <name>.text.tmpl and <name>.html.tmpl.
type mailSet struct {
	subject *texttpl.Template
	text    *texttpl.Template
	html    *htmpl.Template
}

var (
	mu    sync.RWMutex
	cache = map[string]*mailSet{}
)

func parseText(file string) (*texttpl.Template, error) {
	t, err := texttpl.New(file).Funcs(funcs).ParseFS(FS, file)
	if err != nil {
		return nil, fmt.Errorf("parse text %q: %w", file, err)
	}
	return t, nil
}

func load(name string) (*mailSet, error) {
	mu.RLock()
	s, ok := cache[name]
	mu.RUnlock()
	if ok {
		return s, nil
	}

	subject, err := parseText(name + ".subject.tmpl")
	if err != nil {
		return nil, err
	}
	text, err := parseText(name + ".text.tmpl")
	if err != nil {
		return nil, err
	}
	htmlFile := name + ".html.tmpl"
	html, err := htmpl.New(htmlFile).Funcs(funcs).ParseFS(FS, htmlFile)
	if err != nil {
		return nil, fmt.Errorf("parse html %q: %w", htmlFile, err)
	}

	s = &mailSet{subject: subject, text: text, html: html}
	mu.Lock()
	cache[name] = s
	mu.Unlock()
	return s, nil
}

func execText(t *texttpl.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// Render fills the subject, text and html parts of template name.
func Render(name string, data any) (subject string, text string, html string, err error) {
	s, err := load(name)
	if err != nil {
		return "", "", "", err
	}
	if subject, err = execText(s.subject, data); err != nil {
		return "", "", "", err
	}
	if text, err = execText(s.text, data); err != nil {
		return "", "", "", err
	}
	var buf bytes.Buffer
	if err := s.html.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("exec %q: %w", s.html.Name(), err)
	}
	return strings.TrimSpace(subject), text, buf.String(), nil
}

// Rendered is the output of Renderer.Render.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Renderer adapts Render to an injectable collaborator.
type Renderer struct{}

func (Renderer) Render(name string, data map[string]any) (Rendered, error) {
	s, t, h, err := Render(name, data)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: s, Text: t, HTML: h}, nil
}
