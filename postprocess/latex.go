package postprocess

import (
	"regexp"
	"strings"
)

var (
	displayParen = regexp.MustCompile(`(?s)\\\[(.+?)\\\]`)
	inlineParen  = regexp.MustCompile(`\\\((.+?)\\\)`)
)

// ConvertLatexDelimiters rewrites \( \) and \[ \] math delimiters into the
// dollar forms pandoc understands. When fixSingleDollarBlock is set, a math
// block fenced by lines holding a single "$" is turned into a "$$" block.
// Code spans and fenced code are left alone.
func ConvertLatexDelimiters(text string, fixSingleDollarBlock bool) string {
	segments := splitCode(text)
	for i := range segments {
		if segments[i].code {
			continue
		}
		s := segments[i].text
		s = displayParen.ReplaceAllStringFunc(s, func(m string) string {
			inner := displayParen.FindStringSubmatch(m)[1]
			return "$$" + strings.TrimSpace(inner) + "$$"
		})
		s = inlineParen.ReplaceAllStringFunc(s, func(m string) string {
			inner := inlineParen.FindStringSubmatch(m)[1]
			return "$" + strings.TrimSpace(inner) + "$"
		})
		if fixSingleDollarBlock {
			s = fixDollarBlocks(s)
		}
		segments[i].text = s
	}

	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.text)
	}
	return b.String()
}

// fixDollarBlocks pairs up lines that consist of a lone "$".
func fixDollarBlocks(s string) string {
	lines := strings.Split(s, "\n")
	open := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "$" {
			continue
		}
		if open < 0 {
			open = i
			continue
		}
		lines[open] = strings.Replace(lines[open], "$", "$$", 1)
		lines[i] = strings.Replace(lines[i], "$", "$$", 1)
		open = -1
	}
	return strings.Join(lines, "\n")
}

type segment struct {
	text string
	code bool
}

// splitCode separates fenced code blocks and inline code spans from prose.
func splitCode(text string) []segment {
	var segs []segment
	var prose strings.Builder
	flush := func() {
		if prose.Len() > 0 {
			segs = append(segs, segment{text: prose.String()})
			prose.Reset()
		}
	}

	lines := strings.SplitAfter(text, "\n")
	inFence := false
	var block strings.Builder
	for _, line := range lines {
		if fence.MatchString(line) {
			if !inFence {
				flush()
				inFence = true
				block.WriteString(line)
				continue
			}
			block.WriteString(line)
			segs = append(segs, segment{text: block.String(), code: true})
			block.Reset()
			inFence = false
			continue
		}
		if inFence {
			block.WriteString(line)
			continue
		}
		splitInline(line, &prose, &segs, flush)
	}
	if block.Len() > 0 {
		// unterminated fence
		segs = append(segs, segment{text: block.String(), code: true})
	}
	flush()
	return segs
}

func splitInline(line string, prose *strings.Builder, segs *[]segment, flush func()) {
	for {
		start := strings.IndexByte(line, '`')
		if start < 0 {
			prose.WriteString(line)
			return
		}
		end := strings.IndexByte(line[start+1:], '`')
		if end < 0 {
			prose.WriteString(line)
			return
		}
		end += start + 2
		prose.WriteString(line[:start])
		flush()
		*segs = append(*segs, segment{text: line[start:end], code: true})
		line = line[end:]
	}
}
