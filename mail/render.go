package mail

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cbroglie/mustache"
)

// Renderer fills a template source with data.
type Renderer interface {
	Render(source string, data map[string]any) (string, error)
}

// MustacheRenderer renders Mustache templates. Parsed templates are cached by
// source text.
type MustacheRenderer struct {
	cache sync.Map // source -> *mustache.Template
}

// NewMustacheRenderer creates a renderer with an empty cache.
func NewMustacheRenderer() *MustacheRenderer {
	return &MustacheRenderer{}
}

// Render parses source on first use and renders it with data.
func (r *MustacheRenderer) Render(source string, data map[string]any) (string, error) {
	tmpl, err := r.parse(source)
	if err != nil {
		return "", err
	}
	out, err := tmpl.Render(data)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

func (r *MustacheRenderer) parse(source string) (*mustache.Template, error) {
	if cached, ok := r.cache.Load(source); ok {
		return cached.(*mustache.Template), nil
	}
	tmpl, err := mustache.ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	r.cache.Store(source, tmpl)
	return tmpl, nil
}

// escapedSlash is how HTML-escaping renderers encode "/".
const escapedSlash = "&#x2F;"

// UnescapeSlashes turns every escaped slash back into "/" so contract links
// survive rendering.
func UnescapeSlashes(s string) string {
	return strings.ReplaceAll(s, escapedSlash, "/")
}

// Letter is a rendered subject and body ready to be prepared as mail.
type Letter struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// RenderLetter renders both parts of the template with data and unescapes
// slashes in the result.
func RenderLetter(r Renderer, t Template, data map[string]any) (Letter, error) {
	subject, err := r.Render(t.Subject, data)
	if err != nil {
		return Letter{}, fmt.Errorf("subject of %s: %w", t.Key, err)
	}
	body, err := r.Render(t.Body, data)
	if err != nil {
		return Letter{}, fmt.Errorf("body of %s: %w", t.Key, err)
	}
	return Letter{
		Subject: UnescapeSlashes(subject),
		Body:    UnescapeSlashes(body),
	}, nil
}
