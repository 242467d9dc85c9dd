// Package render turns Markdown bodies into HTML for the preview pane.
package render

import (
	"bytes"
	"fmt"

	"github.com/tdewolff/minify/v2"
	mhtml "github.com/tdewolff/minify/v2/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const mimeHTML = "text/html"

// Renderer converts body text to displayable markup.
type Renderer interface {
	Render(text string) (string, error)
}

// Func adapts a plain function to Renderer.
type Func func(text string) (string, error)

// Render calls f.
func (f Func) Render(text string) (string, error) { return f(text) }

// Option configures a Markdown renderer.
type Option func(*options)

type options struct {
	highlightStyle string
	minify         bool
	unsafe         bool
}

// WithHighlightStyle enables syntax highlighting of fenced code blocks using
// the named chroma style. An empty name disables highlighting.
func WithHighlightStyle(style string) Option {
	return func(o *options) { o.highlightStyle = style }
}

// WithMinify toggles HTML minification of the rendered output.
func WithMinify(enabled bool) Option {
	return func(o *options) { o.minify = enabled }
}

// WithUnsafe lets raw HTML in the body pass through to the output.
func WithUnsafe() Option {
	return func(o *options) { o.unsafe = true }
}

// Markdown renders GitHub flavoured Markdown with goldmark.
type Markdown struct {
	md goldmark.Markdown
	m  *minify.M
}

// NewMarkdown builds a goldmark-backed renderer.
func NewMarkdown(opts ...Option) *Markdown {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	exts := []goldmark.Extender{extension.GFM}
	if o.highlightStyle != "" {
		exts = append(exts, highlighting.NewHighlighting(highlighting.WithStyle(o.highlightStyle)))
	}
	var rendererOpts []goldmark.Option
	if o.unsafe {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(gmhtml.WithUnsafe()))
	}

	r := &Markdown{
		md: goldmark.New(append([]goldmark.Option{goldmark.WithExtensions(exts...)}, rendererOpts...)...),
	}
	if o.minify {
		r.m = minify.New()
		r.m.AddFunc(mimeHTML, mhtml.Minify)
	}
	return r
}

// Render converts text to HTML.
func (r *Markdown) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render: convert: %w", err)
	}
	if r.m == nil {
		return buf.String(), nil
	}
	out, err := r.m.Bytes(mimeHTML, buf.Bytes())
	if err != nil {
		// Minification is cosmetic; fall back to the raw HTML.
		return buf.String(), nil
	}
	return string(out), nil
}
