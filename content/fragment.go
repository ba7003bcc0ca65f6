package content

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// header holds the Key:Value lines that precede the CF_HTML payload.
type header map[string]string

func parseHeader(raw []byte) header {
	h := header{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 4096), len(raw)+1)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "<!--") {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		h[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return h
}

// offset returns the named header as a non-negative integer.
func (h header) offset(key string) (int, bool) {
	v, ok := h[key]
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// fragmentStrategy locates the fragment or reports that it cannot.
type fragmentStrategy struct {
	name    string
	extract func(raw []byte, h header) (string, bool)
}

// fragmentStrategies are tried in order; the first one that succeeds wins.
var fragmentStrategies = []fragmentStrategy{
	{name: "fragment-offsets", extract: byFragmentOffsets},
	{name: "fragment-anchors", extract: byFragmentAnchors},
	{name: "html-span", extract: byHTMLSpan},
}

// ExtractFragment returns the usable HTML fragment of a CF_HTML clipboard container.
// It never fails: when nothing better is available the whole container is returned.
func ExtractFragment(raw []byte) string {
	s, _ := extractFragment(raw)
	return s
}

// extractFragment also reports which strategy produced the result.
func extractFragment(raw []byte) (string, string) {
	h := parseHeader(raw)
	for _, st := range fragmentStrategies {
		if s, ok := tryStrategy(st, raw, h); ok {
			return s, st.name
		}
	}
	return string(raw), "container"
}

func tryStrategy(st fragmentStrategy, raw []byte, h header) (s string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s, ok = "", false
		}
	}()
	return st.extract(raw, h)
}

func byFragmentOffsets(raw []byte, h header) (string, bool) {
	start, ok1 := h.offset("StartFragment")
	end, ok2 := h.offset("EndFragment")
	if !ok1 || !ok2 || start > end || end > len(raw) {
		return "", false
	}
	return string(raw[start:end]), true
}

var anchorPattern = regexp.MustCompile(`(?is)<!--\s*StartFragment\s*-->(.*)<!--\s*EndFragment\s*-->`)

func byFragmentAnchors(raw []byte, _ header) (string, bool) {
	m := anchorPattern.FindSubmatch(raw)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

func byHTMLSpan(raw []byte, h header) (string, bool) {
	start, ok := h.offset("StartHTML")
	if !ok {
		start = 0
	}
	end, ok := h.offset("EndHTML")
	if !ok || end > len(raw) {
		end = len(raw)
	}
	if start >= end {
		return "", false
	}
	return string(raw[start:end]), true
}
