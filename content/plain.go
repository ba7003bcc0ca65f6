package content

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainRules tune the "this rich text is really just Markdown" heuristic.
type PlainRules struct {
	// MaxBlocks is the largest number of top-level blocks a plain fragment
	// may have. Zero means unlimited.
	MaxBlocks int
}

// richElements carry structure worth keeping when converting from HTML.
var richElements = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true,
	atom.Table: true, atom.Thead: true, atom.Tbody: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Strong: true, atom.B: true, atom.Em: true, atom.I: true, atom.U: true,
	atom.A: true, atom.Img: true, atom.Code: true, atom.Pre: true, atom.Blockquote: true,
	atom.Hr: true, atom.Sub: true, atom.Sup: true, atom.Del: true, atom.S: true, atom.Strike: true,
	atom.Mark: true, atom.Figure: true, atom.Math: true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
}

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// IsPlainFragment reports whether fragment carries no meaningful rich structure,
// as when an editor wraps plain copied Markdown in a bare <div> or <span>.
func IsPlainFragment(fragment string, rules PlainRules) bool {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), bodyContext)
	if err != nil {
		return false
	}

	blocks := 0
	for _, n := range nodes {
		if hasRichElement(n) {
			return false
		}
		switch {
		case n.Type == html.ElementNode && blockElements[n.DataAtom]:
			blocks++
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" && blocks == 0:
			blocks = 1
		}
	}

	return rules.MaxBlocks == 0 || blocks <= rules.MaxBlocks
}

func hasRichElement(n *html.Node) bool {
	if n.Type == html.ElementNode && richElements[n.DataAtom] {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasRichElement(c) {
			return true
		}
	}
	return false
}
