package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTMLRendersMarkdown(t *testing.T) {
	r := NewRenderer()

	assert.Equal(t, "<p>hello</p>", r.ToHTML("hello"))
	assert.Equal(t, "<p><strong>bold</strong></p>", r.ToHTML("**bold**"))
	assert.Equal(t, "<h1>Title</h1>", r.ToHTML("# Title"))
}

func TestToHTMLStripsDisallowedTags(t *testing.T) {
	r := NewRenderer()

	out := r.ToHTML(`<script>alert("x")</script>safe`)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "safe")

	out = r.ToHTML(`<table><tr><td>cell</td></tr></table>`)
	assert.NotContains(t, out, "<table>")
	assert.Contains(t, out, "cell")
}

func TestToHTMLStripsDisallowedAttributes(t *testing.T) {
	r := NewRenderer()

	out := r.ToHTML(`<p onclick="evil()">text</p>`)
	assert.NotContains(t, out, "onclick")
	assert.Contains(t, out, "text")

	out = r.ToHTML(`[link](javascript:alert(1))`)
	assert.NotContains(t, out, "javascript:")
}

func TestToHTMLAutoLinksBareURLs(t *testing.T) {
	r := NewRenderer()

	out := r.ToHTML("see https://example.com/page for details")
	assert.Contains(t, out, `<a href="https://example.com/page"`)
}

func TestToHTMLKeepsAllowedInlineHTML(t *testing.T) {
	r := NewRenderer()

	out := r.ToHTML(`a <sup>b</sup> and <cite>c</cite>`)
	assert.Contains(t, out, "<sup>b</sup>")
	assert.Contains(t, out, "<cite>c</cite>")
}

func TestToHTMLNeverPanicsOnGarbage(t *testing.T) {
	r := NewRenderer()

	inputs := []string{"", "<", "<<<>>>", strings.Repeat("*", 512), "\x00\x01"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = r.ToHTML(in) })
	}
}
