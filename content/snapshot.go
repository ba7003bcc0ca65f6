package content

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrClipboardAccess is returned when the clipboard could not be read at all.
var ErrClipboardAccess = errors.New("clipboard read failed")

// Source is the platform clipboard as seen by Capture.
type Source interface {
	// Text returns the unicode text on the clipboard, "" when there is none.
	Text() (string, error)
	// HTML returns the raw CF_HTML container, nil when the format is absent.
	HTML() ([]byte, error)
	// Files returns the paths of files copied to the clipboard.
	Files() ([]string, error)
}

// Snapshot is the clipboard state of one paste invocation.
// It is captured once and never modified afterwards.
type Snapshot struct {
	HasText     bool
	Text        string
	HasRichText bool
	RichText    []byte
	Files       []string
}

// DefaultPatterns match Markdown files by base name.
var DefaultPatterns = []string{"*.md", "*.markdown"}

// Holder is a Source that can keep the clipboard open across several
// reads, so that all formats come from the same clipboard state.
type Holder interface {
	Hold(fn func(open Source) error) error
}

// Capture reads the clipboard once. Only a failure to read text is fatal;
// rich text and file lists degrade to absent. Sources implementing Holder
// are read inside a single Hold call.
func Capture(src Source, patterns []string) (Snapshot, error) {
	var (
		snap  Snapshot
		files []string
	)
	read := func(open Source) error {
		var err error
		snap, files, err = readFormats(open)
		return err
	}

	var err error
	if h, ok := src.(Holder); ok {
		err = h.Hold(read)
	} else {
		err = read(src)
	}
	if err != nil {
		if !errors.Is(err, ErrClipboardAccess) {
			err = fmt.Errorf("%w: %v", ErrClipboardAccess, err)
		}
		return Snapshot{}, err
	}

	snap.Files = MarkdownFiles(files, patterns)
	return snap, nil
}

func readFormats(src Source) (Snapshot, []string, error) {
	var snap Snapshot

	text, err := src.Text()
	if err != nil {
		return snap, nil, err
	}
	snap.Text = text
	snap.HasText = text != ""

	raw, err := src.HTML()
	if err != nil {
		slog.Debug("Clipboard HTML unavailable", "error", err)
	} else if len(raw) > 0 {
		snap.HasRichText = true
		snap.RichText = raw
	}

	files, err := src.Files()
	if err != nil {
		slog.Debug("Clipboard file list unavailable", "error", err)
	}
	return snap, files, nil
}

// MarkdownFiles keeps regular files whose base name matches one of patterns
// and sorts them by case-folded base name.
func MarkdownFiles(paths []string, patterns []string) []string {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	var out []string
	for _, p := range paths {
		if !matchesAny(strings.ToLower(filepath.Base(p)), patterns) {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(filepath.Base(out[i])) < strings.ToLower(filepath.Base(out[j]))
	})
	return out
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		ok, err := doublestar.Match(strings.ToLower(pat), name)
		if err != nil {
			slog.Warn("Invalid file pattern", "pattern", pat, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
