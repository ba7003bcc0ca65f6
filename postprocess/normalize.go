package postprocess

import (
	"regexp"
	"strings"
)

var (
	zeroWidth = strings.NewReplacer(
		"\u200b", "",
		"\u200c", "",
		"\u200d", "",
		"\ufeff", "",
		"\u00a0", " ",
	)
	heading  = regexp.MustCompile(`^#{1,6}(\s|$)`)
	listItem = regexp.MustCompile(`^\s{0,3}([-*+]|\d+[.)])\s+\S`)
	fence    = regexp.MustCompile("^\\s{0,3}(```|~~~)")
)

// Normalize repairs Markdown produced by chat tools and web editors so that
// pandoc parses it the way it was rendered at the source:
// unified line endings, no invisible characters, and a
// blank line before headings and lists that directly follow a paragraph.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = zeroWidth.Replace(text)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	prevKind := kindBlank
	inList := false

	for _, line := range lines {
		if fence.MatchString(line) {
			inFence = !inFence
			out = append(out, line)
			prevKind = kindOther
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}

		kind := classifyLine(line)
		switch kind {
		case kindBlank, kindHeading:
			inList = false
		}
		if prevKind == kindParagraph && (kind == kindHeading || kind == kindList && !inList) {
			out = append(out, "")
		}
		if kind == kindList {
			inList = true
		}

		out = append(out, line)
		prevKind = kind
	}

	return strings.Join(out, "\n")
}

type lineKind int

const (
	kindBlank lineKind = iota
	kindHeading
	kindList
	kindParagraph
	kindOther
)

func classifyLine(line string) lineKind {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return kindBlank
	case heading.MatchString(line):
		return kindHeading
	case listItem.MatchString(line):
		return kindList
	case strings.HasPrefix(trimmed, "|"), strings.HasPrefix(trimmed, ">"),
		strings.HasPrefix(trimmed, "<"), strings.HasPrefix(trimmed, "$$"):
		return kindOther
	default:
		return kindParagraph
	}
}
