package workflow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"
)

const (
	timestampLayout = "20060102_150405"
	defaultSlug     = "pastemd"
	maxSlugRunes    = 40
)

// outputPath picks <dir>/<slug>_<timestamp>.<ext>, adding a counter when
// the name is taken. dir is created if needed.
func (r *Router) outputPath(dir, slug, ext string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", &PersistenceError{Path: dir, Err: errors.New("no output directory configured")}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &PersistenceError{Path: dir, Err: err}
	}
	if slug == "" {
		slug = defaultSlug
	}

	base := slug + "_" + r.deps.Now().Format(timestampLayout)
	path := filepath.Join(dir, base+"."+ext)
	for i := 2; exists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", base, i, ext))
	}
	return path, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Slug derives a file name stem from the first meaningful line of
// Markdown: a heading, a table's first cell or the first line.
func Slug(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "<!--") || strings.HasPrefix(line, "```") || line == "$$" {
			continue
		}
		line = strings.TrimLeft(line, "#>-*+ ")
		if strings.HasPrefix(line, "|") {
			line = strings.TrimPrefix(line, "|")
			if i := strings.Index(line, "|"); i >= 0 {
				line = line[:i]
			}
		}
		if s := sanitize(line); s != "" {
			return s
		}
	}
	return defaultSlug
}

func baseSlug(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if s := sanitize(stem); s != "" {
		return s
	}
	return defaultSlug
}

// sanitize keeps letters and digits of any script and folds everything
// else into single dashes.
func sanitize(s string) string {
	var b strings.Builder
	runes, dash := 0, false
	for _, r := range s {
		if runes >= maxSlugRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
				runes++
			}
			b.WriteRune(unicode.ToLower(r))
			runes++
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// htmlText returns the text of the first element with non-blank content.
func htmlText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				slog.Debug("Tokenizing HTML for slug failed", "error", z.Err())
			}
			return ""
		case html.TextToken:
			if text := strings.TrimSpace(string(z.Text())); text != "" {
				return text
			}
		}
	}
}

// SweepTransient removes files in dir last modified before maxAge ago and
// returns how many were removed. A missing dir is not an error.
func SweepTransient(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list transient dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove stale transient file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
