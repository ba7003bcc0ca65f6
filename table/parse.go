// Package table parses Markdown pipe tables and writes them as spreadsheets.
package table

import (
	"regexp"
	"strings"
)

var separatorCell = regexp.MustCompile(`^:?-+:?$`)

// Parse returns the rows of a Markdown pipe table, header first and without
// the delimiter row. It returns nil when text is anything other than a
// single table (surrounding blank lines are allowed).
func Parse(text string) [][]string {
	lines := nonBlankLines(text)
	if len(lines) < 2 {
		return nil
	}

	header := splitRow(lines[0])
	if header == nil || !isSeparator(lines[1], len(header)) {
		return nil
	}

	rows := [][]string{header}
	for _, line := range lines[2:] {
		cells := splitRow(line)
		if cells == nil {
			return nil
		}
		rows = append(rows, fit(cells, len(header)))
	}
	return rows
}

func nonBlankLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// splitRow splits a table row on unescaped pipes. Rows must contain at
// least one pipe; leading and trailing pipes are optional.
func splitRow(line string) []string {
	if !strings.Contains(line, "|") {
		return nil
	}

	var cells []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	cells = append(cells, strings.TrimSpace(cur.String()))

	if strings.HasPrefix(line, "|") {
		cells = cells[1:]
	}
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) && len(cells) > 0 {
		cells = cells[:len(cells)-1]
	}
	if len(cells) == 0 {
		return nil
	}
	return cells
}

func isSeparator(line string, columns int) bool {
	cells := splitRow(line)
	if len(cells) != columns {
		return false
	}
	for _, c := range cells {
		if !separatorCell.MatchString(strings.ReplaceAll(c, " ", "")) {
			return false
		}
	}
	return true
}

// fit pads or truncates a row to the header width
func fit(cells []string, n int) []string {
	if len(cells) == n {
		return cells
	}
	out := make([]string, n)
	copy(out, cells)
	return out
}
