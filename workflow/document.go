package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
)

// progressLines is the document length from which a "conversion started"
// notice is sent before converting.
const progressLines = 100

// docSource is Markdown or HTML on its way to DOCX.
type docSource struct {
	html    bool
	text    string
	workDir string
	slug    string
}

func markdownSource(text, workDir string) docSource {
	return docSource{text: text, workDir: workDir, slug: Slug(text)}
}

func htmlSource(html string) docSource {
	return docSource{html: true, text: html, slug: Slug(htmlText(html))}
}

// render converts the source and applies the configured DOCX fixes.
func (r *Router) render(ctx context.Context, src docSource) ([]byte, error) {
	if r.deps.Converter == nil {
		return nil, &ConversionError{Err: errors.New("no document converter available")}
	}

	opts := r.settings.Convert
	opts.WorkDir = src.workDir

	var (
		doc      []byte
		err      error
		noIndent bool
	)
	if src.html {
		doc, err = r.deps.Converter.HTMLToDocx(ctx, src.text, opts)
		noIndent = r.settings.HTMLNoIndent
	} else {
		md := r.markdown.Process(src.text)
		if lines := strings.Count(md, "\n") + 1; lines >= progressLines {
			r.deps.OnProgress(success(KeyConversionStarted, Params{"lines": lines}))
		}
		doc, err = r.deps.Converter.MarkdownToDocx(ctx, md, opts)
		noIndent = r.settings.MarkdownNoIndent
	}
	if err != nil {
		return nil, err
	}

	if noIndent {
		fixed, err := r.deps.FixIndent(doc)
		if err != nil {
			slog.Warn("Failed to remove first line indent, keeping document as is", "error", err)
		} else {
			doc = fixed
		}
	}
	return doc, nil
}

func conversionFailure(src docSource, err error) Outcome {
	params := Params{"error": err.Error()}
	var convErr *ConversionError
	switch {
	case errors.As(err, &convErr) && src.html:
		return failure("workflow.html.convert_failed_format", params)
	case errors.As(err, &convErr):
		return failure("workflow.markdown.convert_failed", params)
	case src.html:
		return failure("workflow.html.generate_failed", params)
	default:
		return failure("workflow.document.generate_failed", params)
	}
}

// insertDocument converts src, hands a temporary copy to the target's
// inserter and then keeps a durable copy if configured. done is returned
// when the insertion succeeds.
func (r *Router) insertDocument(ctx context.Context, t Target, p Policy, src docSource, done Outcome) Outcome {
	inserter := r.deps.Documents[t]
	if inserter == nil {
		return failure(KeyInsertFailedNoApp, Params{"app": t.AppName()})
	}

	doc, err := r.render(ctx, src)
	if err != nil {
		slog.Error("Document conversion failed", "html", src.html, "error", err)
		return conversionFailure(src, err)
	}

	tmp, err := r.writeEphemeral(doc)
	if err != nil {
		slog.Error("Failed to write temporary document", "error", err)
		return failure(KeySaveFailed, Params{"error": err.Error()})
	}
	defer removeQuietly(tmp)

	var out Outcome
	ok, err := inserter.Insert(ctx, tmp, r.settings.MoveCursorToEnd)
	switch {
	case err != nil:
		insErr := &InsertionError{App: t.AppName(), Err: err}
		slog.Error("Insert failed", "error", insErr)
		out = failure(KeyInsertFailed, Params{"app": t.AppName(), "error": insErr.Error()})
	case !ok:
		out = failure(KeyInsertFailedNoApp, Params{"app": t.AppName()})
	default:
		out = done
	}

	r.keepCopy(&out, doc, src.slug, p)
	return out
}

// keepCopy persists a durable copy when keep_file is set and, under the
// clipboard policy, puts it on the clipboard. Failures only add a warning.
func (r *Router) keepCopy(out *Outcome, doc []byte, slug string, p Policy) {
	if !r.settings.KeepFile {
		return
	}

	path, err := r.outputPath(r.settings.SaveDir, slug, "docx")
	if err == nil {
		if werr := os.WriteFile(path, doc, 0644); werr != nil {
			err = &PersistenceError{Path: path, Err: werr}
		}
	}
	if err != nil {
		slog.Warn("Failed to keep document copy", "error", err)
		out.WarningKey = KeySaveFailed
		out.WarningParams = Params{"error": err.Error()}
		return
	}
	slog.Info("Kept document copy", "path", path)

	if p != CopyToClipboard {
		return
	}
	if err := r.setClipboardFiles(path); err != nil {
		slog.Warn("Failed to copy document to clipboard", "error", err)
		out.WarningKey = KeyClipboardFailed
		out.WarningParams = Params{"error": err.Error()}
	}
}

func (r *Router) setClipboardFiles(paths ...string) error {
	if r.deps.Clipboard == nil {
		return errors.New("file clipboard not available")
	}
	return r.deps.Clipboard.SetFiles(paths)
}

// writeEphemeral writes doc to a new file in the transient directory. The
// caller removes it.
func (r *Router) writeEphemeral(doc []byte) (string, error) {
	if err := os.MkdirAll(r.settings.TempDir, 0755); err != nil {
		return "", &PersistenceError{Path: r.settings.TempDir, Err: err}
	}
	f, err := os.CreateTemp(r.settings.TempDir, "insert-*.docx")
	if err != nil {
		return "", &PersistenceError{Path: r.settings.TempDir, Err: err}
	}
	_, werr := f.Write(doc)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		removeQuietly(f.Name())
		return "", &PersistenceError{Path: f.Name(), Err: errors.Join(werr, cerr)}
	}
	return f.Name(), nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove temporary file", "path", path, "error", err)
	}
}

// insertTable parses text as a Markdown table and writes it into the
// target spreadsheet.
func (r *Router) insertTable(ctx context.Context, t Target, text string) Outcome {
	rows := r.deps.ParseTable(text)
	if rows == nil {
		return failure("workflow.table.invalid_with_app", Params{"app": t.AppName()})
	}

	inserter := r.deps.Tables[t]
	if inserter == nil {
		return failure(KeyInsertFailedNoApp, Params{"app": t.AppName()})
	}

	ok, err := inserter.InsertTable(ctx, rows, r.settings.KeepTableFormat)
	if err != nil {
		insErr := &InsertionError{App: t.AppName(), Err: err}
		slog.Error("Table insert failed", "error", insErr)
		return failure("workflow.table.insert_failed", Params{"app": t.AppName(), "error": insErr.Error()})
	}
	if !ok {
		return failure(KeyInsertFailedNoApp, Params{"app": t.AppName()})
	}
	return success("workflow.table.insert_success", Params{"rows": len(rows), "app": t.AppName()})
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
