// Package template renders typed event payloads into channel-specific
// content. Rendering is a pure function of (template, payload, channel);
// re-rendering on retry always yields byte-identical content.
package template

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplateFieldMissing = errors.New("template field missing")
)

// DefaultVariant is the variant used when a template has no entry for the
// requested channel.
const DefaultVariant = "default"

// Definition is one channel variant of a template. Subject is optional and
// only meaningful for channels that have one (email, push).
type Definition struct {
	Subject string `mapstructure:"subject" json:"subject,omitempty"`
	Body    string `mapstructure:"body" json:"body"`
}

// Template is a named message layout with per-channel variants.
type Template struct {
	Name     string
	Variants map[string]Definition
}

// Rendered is the output handed to a channel adapter.
type Rendered struct {
	Template string
	Channel  string
	Subject  string
	Body     string
}

// Renderer resolves template names and expands placeholders. The template
// set is immutable after construction.
type Renderer struct {
	templates map[string]Template
}

func NewRenderer(templates map[string]Template) *Renderer {
	return &Renderer{templates: templates}
}

// Has reports whether a template with the given name is registered.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Render expands the named template for the given channel. Placeholders are
// written {{field}}; a trailing question mark ({{field?}}) marks the field
// optional, rendering as empty string when the payload has no such key. A
// missing required field fails the render with ErrTemplateFieldMissing.
func (r *Renderer) Render(name string, payload map[string]any, channel string) (Rendered, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	def, ok := tpl.Variants[channel]
	if !ok {
		def, ok = tpl.Variants[DefaultVariant]
		if !ok {
			return Rendered{}, fmt.Errorf("%w: %q has no variant for channel %q", ErrTemplateNotFound, name, channel)
		}
	}

	subject, err := expand(def.Subject, payload)
	if err != nil {
		return Rendered{}, fmt.Errorf("template %q subject: %w", name, err)
	}
	body, err := expand(def.Body, payload)
	if err != nil {
		return Rendered{}, fmt.Errorf("template %q body: %w", name, err)
	}

	return Rendered{Template: name, Channel: channel, Subject: subject, Body: body}, nil
}

// expand substitutes {{field}} placeholders from the payload.
func expand(s string, payload map[string]any) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end += start

		b.WriteString(s[:start])
		field := strings.TrimSpace(s[start+2 : end])
		optional := strings.HasSuffix(field, "?")
		if optional {
			field = strings.TrimSuffix(field, "?")
		}

		v, ok := payload[field]
		switch {
		case ok:
			b.WriteString(formatValue(v))
		case optional:
			// renders as empty string
		default:
			return "", fmt.Errorf("%w: %q", ErrTemplateFieldMissing, field)
		}
		s = s[end+2:]
	}
}

// formatValue renders a payload value deterministically. Maps are printed
// with sorted keys so the same payload always yields the same bytes.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(t[k])))
		}
		return strings.Join(parts, " ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, formatValue(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}
