package workflow

import (
	"context"
	"time"

	"markestedt/pastemd/config"
	"markestedt/pastemd/postprocess"
)

// ConvertOptions are passed straight through to the document converter.
type ConvertOptions struct {
	ReferenceDocx       string
	Filters             []string
	KeepOriginalFormula bool
	LatexReplacements   bool
	// WorkDir resolves relative resources such as images.
	WorkDir string
}

// DocumentConverter turns Markdown or HTML into DOCX bytes. Failures should
// be *ConversionError.
type DocumentConverter interface {
	MarkdownToDocx(ctx context.Context, markdown string, opts ConvertOptions) ([]byte, error)
	HTMLToDocx(ctx context.Context, html string, opts ConvertOptions) ([]byte, error)
}

// DocumentInserter inserts a DOCX file into a running word processor.
// It returns false when the application is not reachable.
type DocumentInserter interface {
	Insert(ctx context.Context, path string, moveCursorToEnd bool) (bool, error)
}

// TableInserter writes rows into the active sheet of a running spreadsheet.
type TableInserter interface {
	InsertTable(ctx context.Context, rows [][]string, keepFormat bool) (bool, error)
}

// Launcher opens a file with the default OS handler.
type Launcher interface {
	Open(path string) error
}

// FileClipboard places file references onto the clipboard.
type FileClipboard interface {
	SetFiles(paths []string) error
}

// Deps are the collaborators of a Router. Documents and Tables are keyed
// by target; a missing entry behaves like an unreachable application.
type Deps struct {
	Converter DocumentConverter
	Documents map[Target]DocumentInserter
	Tables    map[Target]TableInserter
	Launcher  Launcher
	Clipboard FileClipboard

	// Optional; defaults are table.Parse, table.WriteXLSX,
	// docx.DisableFirstLineIndent and the html-to-markdown converter.
	ParseTable       func(text string) [][]string
	WriteSpreadsheet func(rows [][]string, path string, keepFormat bool) error
	FixIndent        func(doc []byte) ([]byte, error)
	HTMLToMarkdown   func(html string) (string, error)

	// OnProgress receives intermediate notices such as "conversion started".
	OnProgress func(Outcome)
	Now        func() time.Time
}

// Settings is the slice of configuration a Router reads.
type Settings struct {
	EnableExcel     bool
	KeepTableFormat bool
	KeepFile        bool
	SaveDir         string
	TempDir         string
	MoveCursorToEnd bool

	MarkdownNoIndent bool
	HTMLNoIndent     bool

	Convert  ConvertOptions
	Markdown postprocess.Options
}

// SettingsFrom extracts Settings from a configuration snapshot.
func SettingsFrom(cfg config.Config) Settings {
	return Settings{
		EnableExcel:      cfg.Excel.Enable,
		KeepTableFormat:  cfg.Excel.KeepFormat,
		KeepFile:         cfg.Output.KeepFile,
		SaveDir:          cfg.ExpandedSaveDir(),
		TempDir:          cfg.ExpandedTempDir(),
		MoveCursorToEnd:  cfg.Document.MoveCursorToEnd,
		MarkdownNoIndent: cfg.Document.MarkdownDisableFirstParaIndent,
		HTMLNoIndent:     cfg.Document.HTMLDisableFirstParaIndent,
		Convert: ConvertOptions{
			ReferenceDocx:       cfg.Pandoc.ReferenceDocx,
			Filters:             append([]string(nil), cfg.Pandoc.Filters...),
			KeepOriginalFormula: cfg.Pandoc.KeepOriginalFormula,
			LatexReplacements:   cfg.Pandoc.EnableLatexReplacements,
		},
		Markdown: postprocess.Options{FixSingleDollarBlock: cfg.Document.FixSingleDollarBlock},
	}
}
