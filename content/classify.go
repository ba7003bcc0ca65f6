package content

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Kind tags the variant held by a Descriptor.
type Kind int

const (
	Empty Kind = iota
	PlainText
	RichText
	FileSet
)

func (k Kind) String() string {
	switch k {
	case PlainText:
		return "plain_text"
	case RichText:
		return "rich_text"
	case FileSet:
		return "file_set"
	default:
		return "empty"
	}
}

// File is one successfully read Markdown file.
type File struct {
	Name     string
	Path     string
	Content  string
	Encoding string
}

// Descriptor is the classified clipboard content of one invocation.
//
//	Empty      no usable content
//	PlainText  Text holds the Markdown source
//	RichText   HTML holds the cleaned fragment, Text the plain alternative (may be blank)
//	FileSet    Files holds the decoded files in name order
//
// Skipped lists referenced files that could not be read, whatever the kind.
type Descriptor struct {
	Kind              Kind
	Text              string
	HTML              string
	LooksLikeMarkdown bool
	Files             []File
	Skipped           []*FileReadError
}

// Classifier derives a Descriptor from a Snapshot.
type Classifier struct {
	Cleaner Cleaner
	Rules   PlainRules
	// ReadFile defaults to the package ReadFile.
	ReadFile func(path string) (text, encoding string, err error)
}

// Classify never fails; anything unexpected degrades to Empty.
func (c *Classifier) Classify(snap Snapshot) (d Descriptor) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Classification panicked, treating clipboard as empty", "panic", r)
			d = Descriptor{Kind: Empty}
		}
	}()

	if snap.HasText && strings.TrimSpace(snap.Text) != "" {
		return c.classifyText(snap)
	}

	if len(snap.Files) == 0 {
		return Descriptor{Kind: Empty}
	}

	return c.classifyFiles(snap.Files)
}

func (c *Classifier) classifyText(snap Snapshot) Descriptor {
	plain := Descriptor{Kind: PlainText, Text: snap.Text}
	if !snap.HasRichText {
		return plain
	}

	fragment, strategy := extractFragment(snap.RichText)
	cleaned := fragment
	if c.Cleaner != nil {
		cleaned = c.Cleaner.Clean(fragment)
	}
	slog.Debug("Extracted HTML fragment", "strategy", strategy, "length", len(cleaned))

	if strings.TrimSpace(cleaned) == "" {
		return plain
	}

	if IsPlainFragment(cleaned, c.Rules) {
		slog.Info("HTML fragment looks like Markdown, using text")
		plain.LooksLikeMarkdown = true
		return plain
	}

	return Descriptor{Kind: RichText, Text: snap.Text, HTML: cleaned}
}

func (c *Classifier) classifyFiles(paths []string) Descriptor {
	read := c.ReadFile
	if read == nil {
		read = ReadFile
	}

	d := Descriptor{Kind: FileSet}
	for _, p := range paths {
		name := filepath.Base(p)
		text, enc, err := read(p)
		if err != nil {
			var fre *FileReadError
			if !errors.As(err, &fre) {
				fre = &FileReadError{Name: name, Path: p, Err: err}
			}
			slog.Warn("Skipping unreadable Markdown file", "file", name, "error", fre.Err)
			d.Skipped = append(d.Skipped, fre)
			continue
		}
		slog.Debug("Read Markdown file", "file", name, "encoding", enc)
		d.Files = append(d.Files, File{Name: name, Path: p, Content: text, Encoding: enc})
	}

	if len(d.Files) == 0 {
		d.Kind = Empty
	}
	return d
}

// Merge joins the files of a FileSet into one Markdown document.
// A single file is returned unchanged, several are each preceded by a
// provenance comment naming their source and separated by a blank line.
func Merge(files []File) string {
	switch len(files) {
	case 0:
		return ""
	case 1:
		return files[0].Content
	}

	parts := make([]string, 0, len(files)*3)
	for _, f := range files {
		parts = append(parts, ProvenanceMarker(f.Name), strings.TrimSpace(f.Content), "")
	}
	return strings.Join(parts, "\n")
}

// ProvenanceMarker is the line that names a merged file's origin.
func ProvenanceMarker(name string) string {
	return fmt.Sprintf("<!-- Source: %s -->", name)
}
