package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlainFragment(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		rules    PlainRules
		want     bool
	}{
		{name: "bare text", fragment: "# not a heading yet", want: true},
		{name: "single flat block", fragment: "<div>- item one<br>- item two</div>", want: true},
		{name: "span wrapper", fragment: `<span style="color:#333">**bold**</span>`, want: true},
		{name: "several divs unlimited", fragment: "<div>a</div><div>b</div>", want: true},
		{name: "several divs limited", fragment: "<div>a</div><div>b</div>", rules: PlainRules{MaxBlocks: 1}, want: false},
		{name: "heading", fragment: "<h1>Title</h1>", want: false},
		{name: "nested emphasis", fragment: "<p>some <strong>bold</strong> text</p>", want: false},
		{name: "list", fragment: "<ul><li>x</li></ul>", want: false},
		{name: "table", fragment: "<table><tr><td>1</td></tr></table>", want: false},
		{name: "link inside div", fragment: `<div><a href="https://example.com">x</a></div>`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlainFragment(tt.fragment, tt.rules))
		})
	}
}

func TestHTMLCleaner(t *testing.T) {
	c := NewHTMLCleaner(HTMLOptions{StrikethroughToDel: true})

	out := c.Clean(`<p>keep <s>old</s> <strike>older</strike></p><svg><circle/></svg><img src="logo.svg?v=2"><img src="photo.png"><script>alert(1)</script>`)

	assert.Contains(t, out, "<del>old</del>")
	assert.Contains(t, out, "<del>older</del>")
	assert.Contains(t, out, `src="photo.png"`)
	assert.NotContains(t, out, "svg")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "alert")

	keep := NewHTMLCleaner(HTMLOptions{})
	assert.Contains(t, keep.Clean("<s>x</s>"), "<s>x</s>")
}
