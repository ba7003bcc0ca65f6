package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/pastemd/content"
)

type fakeConverter struct {
	mu       sync.Mutex
	markdown []string
	html     []string
	opts     []ConvertOptions
	err      error
	panics   bool
}

func (f *fakeConverter) MarkdownToDocx(_ context.Context, md string, opts ConvertOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("converter exploded")
	}
	f.markdown = append(f.markdown, md)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("docx:" + md), nil
}

func (f *fakeConverter) HTMLToDocx(_ context.Context, h string, opts ConvertOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = append(f.html, h)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("docx:" + h), nil
}

type fakeInserter struct {
	ok       bool
	err      error
	paths    []string
	contents []string
}

func (f *fakeInserter) Insert(_ context.Context, path string, _ bool) (bool, error) {
	f.paths = append(f.paths, path)
	data, _ := os.ReadFile(path)
	f.contents = append(f.contents, string(data))
	return f.ok, f.err
}

type fakeTables struct {
	ok   bool
	err  error
	rows [][][]string
}

func (f *fakeTables) InsertTable(_ context.Context, rows [][]string, _ bool) (bool, error) {
	f.rows = append(f.rows, rows)
	return f.ok, f.err
}

type fakeLauncher struct {
	opened []string
	err    error
}

func (f *fakeLauncher) Open(path string) error {
	f.opened = append(f.opened, path)
	return f.err
}

type fakeClipboard struct {
	files [][]string
	err   error
}

func (f *fakeClipboard) SetFiles(paths []string) error {
	f.files = append(f.files, paths)
	return f.err
}

type fixture struct {
	converter *fakeConverter
	word      *fakeInserter
	excel     *fakeTables
	launcher  *fakeLauncher
	clipboard *fakeClipboard
	progress  []Outcome
	sheets    map[string][][]string
	settings  Settings
}

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		converter: &fakeConverter{},
		word:      &fakeInserter{ok: true},
		excel:     &fakeTables{ok: true},
		launcher:  &fakeLauncher{},
		clipboard: &fakeClipboard{},
		sheets:    map[string][][]string{},
		settings: Settings{
			EnableExcel: true,
			SaveDir:     filepath.Join(dir, "save"),
			TempDir:     filepath.Join(dir, "tmp"),
		},
	}
}

func (f *fixture) router() *Router {
	return NewRouter(Deps{
		Converter: f.converter,
		Documents: map[Target]DocumentInserter{Word: f.word, Wps: f.word},
		Tables:    map[Target]TableInserter{Excel: f.excel, WpsExcel: f.excel},
		Launcher:  f.launcher,
		Clipboard: f.clipboard,
		WriteSpreadsheet: func(rows [][]string, path string, _ bool) error {
			f.sheets[path] = rows
			return os.WriteFile(path, []byte("xlsx"), 0644)
		},
		FixIndent:  func(doc []byte) ([]byte, error) { return doc, nil },
		OnProgress: func(o Outcome) { f.progress = append(f.progress, o) },
		Now:        func() time.Time { return fixedNow },
	}, f.settings)
}

func keys(outcomes []Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.MessageKey
	}
	return out
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRouteExcelTable(t *testing.T) {
	f := newFixture(t)
	d := content.Descriptor{Kind: content.PlainText, Text: "| a | b |\n|-|-|\n|1|2|"}

	out := f.router().Route(context.Background(), d, Excel, Open)

	require.Len(t, out, 1)
	assert.True(t, out[0].Succeeded)
	assert.Equal(t, "workflow.table.insert_success", out[0].MessageKey)
	assert.Equal(t, 2, out[0].Params["rows"])
	require.Len(t, f.excel.rows, 1)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, f.excel.rows[0])
}

func TestRoutePlainTextToSheetRejectsNonTable(t *testing.T) {
	f := newFixture(t)
	d := content.Descriptor{Kind: content.PlainText, Text: "just words"}

	out := f.router().Route(context.Background(), d, WpsExcel, Open)

	require.Len(t, out, 1)
	assert.False(t, out[0].Succeeded)
	assert.Equal(t, "workflow.table.invalid_with_app", out[0].MessageKey)
	assert.Equal(t, "WPS Spreadsheets", out[0].Params["app"])
	assert.Empty(t, f.excel.rows)
}

func TestRouteFilesWithSavePolicy(t *testing.T) {
	f := newFixture(t)
	src := t.TempDir()
	b := filepath.Join(src, "b.md")
	a := filepath.Join(src, "a.md")
	require.NoError(t, os.WriteFile(b, []byte("# B"), 0644))
	require.NoError(t, os.WriteFile(a, []byte("# A"), 0644))

	snap := content.Snapshot{Files: content.MarkdownFiles([]string{b, a}, content.DefaultPatterns)}
	d := (&content.Classifier{Cleaner: content.CleanFunc(strings.TrimSpace)}).Classify(snap)
	require.Equal(t, content.FileSet, d.Kind)
	require.Equal(t, "a.md", d.Files[0].Name)

	out := f.router().Route(context.Background(), d, None, Save)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"workflow.md_file.saved", "workflow.md_file.saved", KeyBatchSuccess}, keys(out))
	for _, o := range out {
		assert.True(t, o.Succeeded)
	}
	assert.Equal(t, "a.md", out[0].Params["filename"])
	assert.Equal(t, "b.md", out[1].Params["filename"])
	assert.Equal(t, 2, out[2].Params["count"])
	assert.Equal(t, []string{"# A", "# B"}, f.converter.markdown)
	assert.Equal(t, src, f.converter.opts[0].WorkDir)
	assert.ElementsMatch(t, []string{"a_20260301_093000.docx", "b_20260301_093000.docx"}, dirEntries(t, f.settings.SaveDir))
}

func TestRouteBatchWithoutSuccessHasNoAggregate(t *testing.T) {
	f := newFixture(t)
	f.converter.err = &ConversionError{Output: "bad input", Err: errors.New("exit status 64")}
	d := content.Descriptor{Kind: content.FileSet, Files: []content.File{
		{Name: "a.md", Content: "A"},
		{Name: "b.md", Content: "B"},
	}}

	out := f.router().Route(context.Background(), d, None, Save)

	assert.Equal(t, []string{"workflow.markdown.convert_failed", "workflow.markdown.convert_failed"}, keys(out))
	assert.Empty(t, dirEntries(t, f.settings.SaveDir))
}

func TestRouteEmptyClipboard(t *testing.T) {
	for _, target := range []Target{Word, Wps, Excel, WpsExcel, None} {
		f := newFixture(t)
		out := f.router().Route(context.Background(), content.Descriptor{Kind: content.Empty}, target, Open)

		require.Len(t, out, 1, target)
		assert.False(t, out[0].Succeeded)
		assert.Equal(t, KeyClipboardEmpty, out[0].MessageKey)
	}
}

func TestRouteReportsSkippedFilesFirst(t *testing.T) {
	f := newFixture(t)
	skipped := []*content.FileReadError{{Name: "bad.md", Err: errors.New("undecodable")}}

	d := content.Descriptor{Kind: content.FileSet, Files: []content.File{{Name: "ok.md", Content: "ok"}}, Skipped: skipped}
	out = f.router().Route(context.Background(), d, None, Save)
	assert.Equal(t, []string{KeyFileReadFailed, "workflow.md_file.saved"}, keys(out))
}

func TestRouteUnreadableFilesStillReportEmpty(t *testing.T) {
	f := newFixture(t)
	skipped := []*content.FileReadError{
		{Name: "a.md", Err: errors.New("undecodable")},
		{Name: "b.md", Err: errors.New("undecodable")},
	}

	out := f.router().Route(context.Background(), content.Descriptor{Kind: content.Empty, Skipped: skipped}, None, Save)

	assert.Equal(t, []string{KeyFileReadFailed, KeyFileReadFailed, KeyClipboardEmpty}, keys(out))
	assert.Equal(t, "a.md", out[0].Params["filename"])
	assert.Equal(t, "b.md", out[1].Params["filename"])
	for _, o := range out {
		assert.False(t, o.Succeeded)
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	descriptors := []content.Descriptor{
		{Kind: content.PlainText, Text: "| a |\n|---|\n| 1 |"},
		{Kind: content.PlainText, Text: "hello"},
		{Kind: content.RichText, HTML: "<h1>x</h1>"},
		{Kind: content.FileSet, Files: []content.File{{Name: "a.md", Content: "A"}, {Name: "b.md", Content: "B"}}},
		{Kind: content.Empty},
	}
	targets := []Target{Word, Excel, None}
	policies := []Policy{Open, Save, CopyToClipboard, NoOp}

	f := newFixture(t)
	r := f.router()
	for _, d := range descriptors {
		for _, target := range targets {
			for _, p := range policies {
				first := r.Route(context.Background(), d, target, p)
				second := r.Route(context.Background(), d, target, p)
				require.Equal(t, len(first), len(second))
				for i := range first {
					assert.Equal(t, first[i].Succeeded, second[i].Succeeded)
					assert.Equal(t, first[i].MessageKey, second[i].MessageKey)
				}
			}
		}
	}
}

func TestRouteNoOpPolicy(t *testing.T) {
	f := newFixture(t)

	out := f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: "hi"}, None, NoOp)
	assert.Equal(t, []string{KeyNoAppDetected}, keys(out))

	files := content.Descriptor{Kind: content.FileSet, Files: []content.File{{Name: "a.md"}, {Name: "b.md"}}}
	out = f.router().Route(context.Background(), files, None, NoOp)
	assert.Equal(t, []string{KeyNoAppDetected}, keys(out))

	assert.Empty(t, f.converter.markdown)
	assert.Empty(t, dirEntries(t, f.settings.SaveDir))
}

func TestRouteMarkdownIntoWord(t *testing.T) {
	f := newFixture(t)
	d := content.Descriptor{Kind: content.PlainText, Text: "intro\n# Title"}

	out := f.router().Route(context.Background(), d, Word, Open)

	require.Len(t, out, 1)
	assert.True(t, out[0].Succeeded)
	assert.Equal(t, "workflow.word.insert_success", out[0].MessageKey)
	assert.Equal(t, "Word", out[0].Params["app"])
	assert.Equal(t, []string{"intro\n\n# Title"}, f.converter.markdown, "normalized before conversion")
	require.Len(t, f.word.paths, 1)
	assert.Equal(t, f.settings.TempDir, filepath.Dir(f.word.paths[0]))
	assert.Equal(t, "docx:intro\n\n# Title", f.word.contents[0])
	assert.NoFileExists(t, f.word.paths[0], "temporary document is removed")
	assert.Empty(t, dirEntries(t, f.settings.SaveDir))
}

func TestRouteMergesFilesForWord(t *testing.T) {
	f := newFixture(t)
	d := content.Descriptor{Kind: content.FileSet, Files: []content.File{
		{Name: "a.md", Path: "/docs/a.md", Content: "A"},
		{Name: "b.md", Path: "/docs/b.md", Content: "B"},
	}}

	out := f.router().Route(context.Background(), d, Wps, Open)

	require.Len(t, out, 1)
	assert.Equal(t, "workflow.md_file.insert_success_multi", out[0].MessageKey)
	assert.Equal(t, 2, out[0].Params["count"])
	require.Len(t, f.converter.markdown, 1)
	md := f.converter.markdown[0]
	assert.Less(t, strings.Index(md, content.ProvenanceMarker("a.md")), strings.Index(md, content.ProvenanceMarker("b.md")))
	assert.Equal(t, filepath.Dir("/docs/a.md"), f.converter.opts[0].WorkDir)
}

func TestRouteSingleFileForWordIsNotMerged(t *testing.T) {
	f := newFixture(t)
	d := content.Descriptor{Kind: content.FileSet, Files: []content.File{{Name: "a.md", Content: "# A"}}}

	out := f.router().Route(context.Background(), d, Word, Open)

	assert.Equal(t, []string{"workflow.md_file.insert_success"}, keys(out))
	assert.Equal(t, []string{"# A"}, f.converter.markdown)
}

func TestRouteInsertFailureDoesNotFallBack(t *testing.T) {
	f := newFixture(t)
	f.word.err = errors.New("RPC server unavailable")
	d := content.Descriptor{Kind: content.PlainText, Text: "x"}

	out := f.router().Route(context.Background(), d, Word, Open)

	require.Len(t, out, 1)
	assert.False(t, out[0].Succeeded)
	assert.Equal(t, KeyInsertFailed, out[0].MessageKey)
	assert.Contains(t, out[0].Params["error"], "RPC server unavailable")
	assert.Empty(t, f.launcher.opened)
	assert.Empty(t, dirEntries(t, f.settings.TempDir))
}

func TestRouteUnreachableApplication(t *testing.T) {
	f := newFixture(t)
	f.word.ok = false

	out := f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: "x"}, Word, Open)
	assert.Equal(t, []string{KeyInsertFailedNoApp}, keys(out))

	f.excel.ok = false
	out = f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: "| a |\n|---|"}, Excel, Open)
	assert.Equal(t, []string{KeyInsertFailedNoApp}, keys(out))
}

func TestRouteKeepFileFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	f.settings.KeepFile = true
	f.settings.SaveDir = filepath.Join(blocker, "sub")

	out := f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: "x"}, Word, Open)

	require.Len(t, out, 1)
	assert.True(t, out[0].Succeeded)
	assert.Equal(t, KeySaveFailed, out[0].WarningKey)
}

func TestRouteKeepFileWithClipboardPolicy(t *testing.T) {
	f := newFixture(t)
	f.settings.KeepFile = true

	out := f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: "# Notes"}, Word, CopyToClipboard)

	require.Len(t, out, 1)
	assert.True(t, out[0].Succeeded)
	assert.Empty(t, out[0].WarningKey)
	kept := filepath.Join(f.settings.SaveDir, "notes_20260301_093000.docx")
	assert.FileExists(t, kept)
	assert.Equal(t, [][]string{{kept}}, f.clipboard.files)
}

func TestRouteRichTextIntoWord(t *testing.T) {
	f := newFixture(t)
	d := content.Descriptor{Kind: content.RichText, HTML: "<h1>Hi</h1><ul><li>x</li></ul>", Text: "Hi\nx"}

	out := f.router().Route(context.Background(), d, Word, Open)

	assert.Equal(t, []string{"workflow.html.insert_success"}, keys(out))
	assert.Equal(t, []string{d.HTML}, f.converter.html)
	assert.Empty(t, f.converter.markdown)
}

func TestRouteRichTextForSpreadsheetUsesMarkdown(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	r.deps.HTMLToMarkdown = func(string) (string, error) {
		return "| x | y |\n|---|---|\n| 1 | 2 |", nil
	}

	d := content.Descriptor{Kind: content.RichText, HTML: "<table><tr><td>x</td></tr></table>"}
	out := r.Route(context.Background(), d, Excel, Save)

	require.Len(t, out, 1)
	assert.Equal(t, "workflow.table.export_success", out[0].MessageKey)
	assert.Equal(t, 2, out[0].Params["rows"])
	assert.Empty(t, f.excel.rows, "rich text is never inserted as a table")
	require.Len(t, f.sheets, 1)

	d = content.Descriptor{Kind: content.RichText, HTML: "<p><b>hello</b></p>", Text: "hello"}
	out = r.Route(context.Background(), d, Excel, Save)
	assert.Equal(t, []string{"workflow.action.saved"}, keys(out))
	assert.Equal(t, []string{"hello"}, f.converter.markdown)
}

func TestRouteExcelDisabledUsesPolicy(t *testing.T) {
	f := newFixture(t)
	f.settings.EnableExcel = false
	d := content.Descriptor{Kind: content.PlainText, Text: "| a |\n|---|\n| 1 |"}

	out := f.router().Route(context.Background(), d, Excel, Save)

	assert.Equal(t, []string{"workflow.action.saved"}, keys(out))
	assert.Empty(t, f.excel.rows)
	assert.Empty(t, f.sheets)
	assert.Len(t, f.converter.markdown, 1)
}

func TestRouteConversionFailure(t *testing.T) {
	f := newFixture(t)
	f.converter.err = &ConversionError{Output: "unknown extension", Err: errors.New("exit status 2")}

	out := f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: "x"}, Word, Open)
	assert.Equal(t, []string{"workflow.markdown.convert_failed"}, keys(out))
	assert.Contains(t, out[0].Params["error"], "unknown extension")
	assert.Empty(t, f.word.paths)

	out = f.router().Route(context.Background(), content.Descriptor{Kind: content.RichText, HTML: "<b>x</b>"}, Word, Open)
	assert.Equal(t, []string{"workflow.html.convert_failed_format"}, keys(out))
}

func TestRouteRecoversFromPanics(t *testing.T) {
	f := newFixture(t)
	f.converter.panics = true

	out := f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: "x"}, Word, Open)

	require.Len(t, out, 1)
	assert.False(t, out[0].Succeeded)
	assert.Equal(t, KeyGenericFailure, out[0].MessageKey)
}

func TestRouteConversionProgress(t *testing.T) {
	f := newFixture(t)
	text := strings.Repeat("line\n", 120)

	f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: text}, Word, Open)

	require.Len(t, f.progress, 1)
	assert.Equal(t, KeyConversionStarted, f.progress[0].MessageKey)
	assert.Equal(t, 121, f.progress[0].Params["lines"])

	f.progress = nil
	f.router().Route(context.Background(), content.Descriptor{Kind: content.PlainText, Text: "short"}, Word, Open)
	assert.Empty(t, f.progress)
}

func TestRouteAnnouncesMultipleFiles(t *testing.T) {
	two := content.Descriptor{Kind: content.FileSet, Files: []content.File{{Name: "a.md", Content: "A"}, {Name: "b.md", Content: "B"}}}

	f := newFixture(t)
	f.router().Route(context.Background(), two, Word, Open)
	require.Equal(t, []string{KeyFilesFound}, keys(f.progress))
	assert.Equal(t, 2, f.progress[0].Params["count"])

	f.progress = nil
	f.router().Route(context.Background(), two, None, Save)
	assert.Equal(t, []string{KeyFilesFound}, keys(f.progress))

	f.progress = nil
	one := content.Descriptor{Kind: content.FileSet, Files: []content.File{{Name: "a.md", Content: "A"}}}
	f.router().Route(context.Background(), one, Word, Open)
	assert.Empty(t, f.progress)
}
