package content

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Cleaner turns an extracted fragment into HTML fit for document conversion.
type Cleaner interface {
	Clean(fragment string) string
}

// CleanFunc adapts a plain function to Cleaner.
type CleanFunc func(string) string

func (f CleanFunc) Clean(fragment string) string { return f(fragment) }

// HTMLOptions control HTMLCleaner.
type HTMLOptions struct {
	StrikethroughToDel bool
}

// HTMLCleaner drops SVG content and scripts, and optionally normalizes
// strikethrough markup so the converter recognizes it.
type HTMLCleaner struct {
	opts   HTMLOptions
	policy *bluemonday.Policy
}

// NewHTMLCleaner builds a cleaner around a user-generated-content policy
// widened with the tags that clipboard producers commonly emit.
func NewHTMLCleaner(opts HTMLOptions) *HTMLCleaner {
	p := bluemonday.UGCPolicy()
	p.AllowElements("span", "div", "font", "del", "ins", "s", "u", "mark", "sub", "sup", "br", "hr")
	p.AllowAttrs("colspan", "rowspan", "align").OnElements("td", "th")
	p.AllowAttrs("start").OnElements("ol")
	p.AllowDataURIImages()
	return &HTMLCleaner{opts: opts, policy: p}
}

// Clean implements Cleaner.
func (c *HTMLCleaner) Clean(fragment string) string {
	rewritten := c.rewrite(fragment)
	return strings.TrimSpace(c.policy.Sanitize(rewritten))
}

// rewrite strips SVG and renames strikethrough tags before sanitizing,
// so that bluemonday never keeps the text content of an <svg>.
func (c *HTMLCleaner) rewrite(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), bodyContext)
	if err != nil {
		return fragment
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if dropNode(n) {
			continue
		}
		c.rewriteNode(n)
		if err := html.Render(&buf, n); err != nil {
			return fragment
		}
	}
	return buf.String()
}

func (c *HTMLCleaner) rewriteNode(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if dropNode(child) {
			n.RemoveChild(child)
		} else {
			c.rewriteNode(child)
		}
		child = next
	}

	if c.opts.StrikethroughToDel && n.Type == html.ElementNode &&
		(n.DataAtom == atom.S || n.DataAtom == atom.Strike) {
		n.DataAtom = atom.Del
		n.Data = "del"
	}
}

func dropNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.DataAtom == atom.Svg || strings.EqualFold(n.Data, "svg") {
		return true
	}
	if n.DataAtom == atom.Img {
		for _, a := range n.Attr {
			if a.Key == "src" && isSVGSource(a.Val) {
				return true
			}
		}
	}
	return false
}

func isSVGSource(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	if strings.HasPrefix(s, "data:image/svg") {
		return true
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.HasSuffix(s, ".svg")
}
