// Package markup converts author-supplied markdown into safe HTML fragments.
// Rendering never fails: unsafe or malformed input degrades to stripped text.
package markup

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// allowedTags is the full allow-list for rich-text fields. Everything else is
// stripped, attributes included, except link/title attributes listed below.
var allowedTags = []string{
	"a", "abbr", "acronym", "b", "blockquote", "code",
	"em", "i", "li", "ol", "pre", "strong", "ul",
	"h1", "h2", "h3", "h4", "p", "br", "u", "del", "tt", "cite",
	"font", "big", "small", "strike", "sup", "sub", "span", "img", "kdb",
}

// Renderer renders markdown and strips the result down to the allow-list.
// It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer builds the shared renderer. Bare URLs are auto-linked during the
// markdown pass; raw HTML in the source survives rendering and is then subject
// to the same stripping as generated markup.
func NewRenderer() *Renderer {
	policy := bluemonday.NewPolicy()
	policy.AllowElements(allowedTags...)
	policy.AllowAttrs("href", "title").OnElements("a")
	policy.AllowAttrs("title").OnElements("abbr", "acronym")
	policy.AllowStandardURLs()

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		policy: policy,
	}
}

// ToHTML converts source text to a sanitized HTML fragment.
func (r *Renderer) ToHTML(src string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		// Conversion errors are nearly impossible with a bytes.Buffer sink;
		// degrade to sanitizing the raw text rather than failing the write.
		return strings.TrimSpace(r.policy.Sanitize(src))
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String()))
}
