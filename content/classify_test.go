package content

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func newTestClassifier() *Classifier {
	return &Classifier{Cleaner: NewHTMLCleaner(HTMLOptions{StrikethroughToDel: true})}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func TestClassifyPlainText(t *testing.T) {
	d := newTestClassifier().Classify(Snapshot{HasText: true, Text: "# Title\n\nbody"})
	assert.Equal(t, PlainText, d.Kind)
	assert.Equal(t, "# Title\n\nbody", d.Text)
}

func TestClassifyEmptyClipboard(t *testing.T) {
	c := newTestClassifier()

	assert.Equal(t, Empty, c.Classify(Snapshot{}).Kind)
	assert.Equal(t, Empty, c.Classify(Snapshot{HasText: true, Text: "  \n\t "}).Kind)
}

func TestClassifyRichTextFragment(t *testing.T) {
	raw, _, _ := buildContainer("<h2>Heading</h2><ul><li>one</li><li>two</li></ul>")

	d := newTestClassifier().Classify(Snapshot{
		HasText:     true,
		Text:        "Heading\none\ntwo",
		HasRichText: true,
		RichText:    []byte(raw),
	})

	require.Equal(t, RichText, d.Kind)
	assert.Contains(t, d.HTML, "<h2>Heading</h2>")
	assert.Contains(t, d.HTML, "<li>one</li>")
	assert.Equal(t, "Heading\none\ntwo", d.Text)
}

func TestClassifyFlatFragmentAsPlainText(t *testing.T) {
	raw, _, _ := buildContainer("<div>| a | b |<br>|-|-|<br>|1|2|</div>")
	text := "| a | b |\n|-|-|\n|1|2|"

	d := newTestClassifier().Classify(Snapshot{
		HasText:     true,
		Text:        text,
		HasRichText: true,
		RichText:    []byte(raw),
	})

	assert.Equal(t, PlainText, d.Kind)
	assert.True(t, d.LooksLikeMarkdown)
	assert.Equal(t, text, d.Text, "source text is used rather than cleaned HTML")
}

func TestClassifyRichTextWithOnlySVGFallsBackToText(t *testing.T) {
	raw, _, _ := buildContainer(`<svg viewBox="0 0 1 1"><text>icon</text></svg>`)

	d := newTestClassifier().Classify(Snapshot{
		HasText:     true,
		Text:        "**bold**",
		HasRichText: true,
		RichText:    []byte(raw),
	})

	assert.Equal(t, PlainText, d.Kind)
	assert.Equal(t, "**bold**", d.Text)
}

func TestClassifyTextWinsOverFiles(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.md", []byte("# file"))

	d := newTestClassifier().Classify(Snapshot{HasText: true, Text: "typed", Files: []string{p}})
	assert.Equal(t, PlainText, d.Kind)
	assert.Equal(t, "typed", d.Text)
}

func TestClassifyFileSetKeepsOrderAndEncodings(t *testing.T) {
	dir := t.TempDir()
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("# 中文标题"))
	require.NoError(t, err)

	files := MarkdownFiles([]string{
		writeFile(t, dir, "b.md", []byte("# B")),
		writeFile(t, dir, "A.markdown", []byte("\xEF\xBB\xBF# A")),
		writeFile(t, dir, "c.md", gbk),
		writeFile(t, dir, "notes.txt", []byte("ignored")),
	}, nil)
	require.Len(t, files, 3)

	d := newTestClassifier().Classify(Snapshot{Files: files})

	require.Equal(t, FileSet, d.Kind)
	require.Len(t, d.Files, 3)
	assert.Equal(t, []string{"A.markdown", "b.md", "c.md"}, []string{d.Files[0].Name, d.Files[1].Name, d.Files[2].Name})
	assert.Equal(t, "# A", d.Files[0].Content, "byte order mark is stripped")
	assert.Equal(t, "utf-8", d.Files[1].Encoding)
	assert.Equal(t, "gbk", d.Files[2].Encoding)
	assert.Equal(t, "# 中文标题", d.Files[2].Content)
	assert.Empty(t, d.Skipped)
}

func TestClassifySkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.md", []byte("ok"))
	bad := writeFile(t, dir, "bad.md", []byte{0xFF, 0xFF, 0xFF})

	d := newTestClassifier().Classify(Snapshot{Files: []string{bad, good}})

	require.Equal(t, FileSet, d.Kind)
	require.Len(t, d.Files, 1)
	assert.Equal(t, "good.md", d.Files[0].Name)
	require.Len(t, d.Skipped, 1)
	assert.Equal(t, "bad.md", d.Skipped[0].Name)
}

func TestClassifyAllFilesUnreadableIsEmpty(t *testing.T) {
	c := &Classifier{ReadFile: func(path string) (string, string, error) {
		return "", "", errors.New("locked")
	}}

	d := c.Classify(Snapshot{Files: []string{"/x/one.md", "/x/two.md"}})
	assert.Equal(t, Empty, d.Kind)
	require.Len(t, d.Skipped, 2)
	assert.Equal(t, "one.md", d.Skipped[0].Name)
}

func TestClassifyIsTotal(t *testing.T) {
	c := &Classifier{
		Cleaner: CleanFunc(func(string) string { panic("cleaner exploded") }),
	}
	raw, _, _ := buildContainer("<b>x</b>")

	var d Descriptor
	assert.NotPanics(t, func() {
		d = c.Classify(Snapshot{HasText: true, Text: "x", HasRichText: true, RichText: []byte(raw)})
	})
	assert.Equal(t, Empty, d.Kind)
}

func TestMerge(t *testing.T) {
	single := []File{{Name: "only.md", Content: "  # Only\n\n"}}
	assert.Equal(t, "  # Only\n\n", Merge(single), "single file is passed through unchanged")

	files := []File{
		{Name: "a.md", Content: "# A\n"},
		{Name: "b.md", Content: "\n# B"},
		{Name: "c.md", Content: "C"},
	}
	merged := Merge(files)

	assert.Equal(t, "<!-- Source: a.md -->\n# A\n\n<!-- Source: b.md -->\n# B\n\n<!-- Source: c.md -->\nC\n", merged)
	assert.Equal(t, 3, strings.Count(merged, "<!-- Source:"))
	assert.Less(t, strings.Index(merged, "a.md"), strings.Index(merged, "b.md"))
	assert.Less(t, strings.Index(merged, "b.md"), strings.Index(merged, "c.md"))
}

type fakeSource struct {
	text    string
	textErr error
	html    []byte
	htmlErr error
	files   []string
}

func (f fakeSource) Text() (string, error)    { return f.text, f.textErr }
func (f fakeSource) HTML() ([]byte, error)    { return f.html, f.htmlErr }
func (f fakeSource) Files() ([]string, error) { return f.files, nil }

func TestCapture(t *testing.T) {
	dir := t.TempDir()
	md := writeFile(t, dir, "x.md", []byte("x"))

	snap, err := Capture(fakeSource{text: "hi", htmlErr: errors.New("busy"), files: []string{md, dir}}, nil)
	require.NoError(t, err)
	assert.True(t, snap.HasText)
	assert.False(t, snap.HasRichText, "HTML read errors degrade to no rich text")
	assert.Equal(t, []string{md}, snap.Files)

	_, err = Capture(fakeSource{textErr: errors.New("owned by another process")}, nil)
	assert.ErrorIs(t, err, ErrClipboardAccess)
}

// heldSource only answers reads while Hold is running.
type heldSource struct {
	fakeSource
	holds   int
	open    bool
	outside int
	holdErr error
}

func (h *heldSource) Hold(fn func(Source) error) error {
	h.holds++
	if h.holdErr != nil {
		return h.holdErr
	}
	h.open = true
	defer func() { h.open = false }()
	return fn(h)
}

func (h *heldSource) Text() (string, error) {
	h.check()
	return h.fakeSource.Text()
}

func (h *heldSource) HTML() ([]byte, error) {
	h.check()
	return h.fakeSource.HTML()
}

func (h *heldSource) Files() ([]string, error) {
	h.check()
	return h.fakeSource.Files()
}

func (h *heldSource) check() {
	if !h.open {
		h.outside++
	}
}

func TestCaptureReadsAllFormatsInOneHold(t *testing.T) {
	dir := t.TempDir()
	md := writeFile(t, dir, "x.md", []byte("x"))
	src := &heldSource{fakeSource: fakeSource{text: "hi", html: []byte("<b>hi</b>"), files: []string{md}}}

	snap, err := Capture(src, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, src.holds)
	assert.Zero(t, src.outside)
	assert.True(t, snap.HasText)
	assert.True(t, snap.HasRichText)
	assert.Equal(t, []string{md}, snap.Files)

	_, err = Capture(&heldSource{holdErr: errors.New("OpenClipboard failed")}, nil)
	assert.ErrorIs(t, err, ErrClipboardAccess)
}
