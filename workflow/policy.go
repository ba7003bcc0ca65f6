package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

// payload is an artifact the no-target policy can generate. The executor
// knows nothing about the content it came from.
type payload interface {
	ext() string
	slug() string
	write(ctx context.Context, r *Router, path string) error
	messages() messages
}

// messages are the outcome keys of a payload. params are merged into
// every outcome.
type messages struct {
	opened         string
	saved          string
	copied         string
	convertFailed  string
	generateFailed string
	saveFailed     string
	openFailed     string
	params         Params
}

var (
	markdownMessages = messages{
		opened:         "workflow.document.generated_and_opened",
		saved:          "workflow.action.saved",
		copied:         "workflow.action.clipboard_copied",
		convertFailed:  "workflow.markdown.convert_failed",
		generateFailed: "workflow.document.generate_failed",
		saveFailed:     KeySaveFailed,
		openFailed:     KeyOpenFailed,
	}
	fileMessages = messages{
		opened:         "workflow.md_file.generated_and_opened",
		saved:          "workflow.md_file.saved",
		copied:         "workflow.md_file.clipboard_copied",
		convertFailed:  "workflow.markdown.convert_failed",
		generateFailed: "workflow.document.generate_failed",
		saveFailed:     KeySaveFailed,
		openFailed:     KeyOpenFailed,
	}
	htmlMessages = messages{
		opened:         "workflow.html.generated_and_opened",
		saved:          "workflow.action.saved",
		copied:         "workflow.action.clipboard_copied",
		convertFailed:  "workflow.html.convert_failed_format",
		generateFailed: "workflow.html.generate_failed",
		saveFailed:     KeySaveFailed,
		openFailed:     KeyOpenFailed,
	}
	tableMessages = messages{
		opened:         "workflow.table.export_success",
		saved:          "workflow.table.export_success",
		copied:         "workflow.action.clipboard_copied",
		convertFailed:  "workflow.table.export_failed",
		generateFailed: "workflow.table.export_failed",
		saveFailed:     "workflow.table.export_failed",
		openFailed:     "workflow.table.export_open_failed",
	}
)

type docPayload struct {
	src  docSource
	msgs messages
}

func markdownPayload(text, workDir, slug string) docPayload {
	src := markdownSource(text, workDir)
	if slug != "" {
		src.slug = slug
	}
	return docPayload{src: src, msgs: markdownMessages}
}

func htmlPayload(html string) docPayload {
	return docPayload{src: htmlSource(html), msgs: htmlMessages}
}

// forFile switches to the per-file messages of a batch.
func (p docPayload) forFile(name string) docPayload {
	p.msgs = fileMessages
	p.msgs.params = Params{"filename": name}
	return p
}

func (p docPayload) ext() string        { return "docx" }
func (p docPayload) slug() string       { return p.src.slug }
func (p docPayload) messages() messages { return p.msgs }

func (p docPayload) write(ctx context.Context, r *Router, path string) error {
	doc, err := r.render(ctx, p.src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, doc, 0644); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

type tablePayload [][]string

func (p tablePayload) ext() string  { return "xlsx" }
func (p tablePayload) slug() string { return Slug(p[0][0]) }

func (p tablePayload) messages() messages {
	m := tableMessages
	m.params = Params{"rows": len(p)}
	return m
}

func (p tablePayload) write(_ context.Context, r *Router, path string) error {
	if err := r.deps.WriteSpreadsheet(p, path, r.settings.KeepTableFormat); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

// applyPolicy generates pl according to the no-target policy. NoOp
// generates nothing.
func (r *Router) applyPolicy(ctx context.Context, pl payload, p Policy) Outcome {
	if p == NoOp {
		return failure(KeyNoAppDetected, nil)
	}

	msgs := pl.messages()
	dir, transient := r.settings.SaveDir, false
	if p == CopyToClipboard && !r.settings.KeepFile {
		dir, transient = r.settings.TempDir, true
	}

	path, err := r.outputPath(dir, pl.slug(), pl.ext())
	if err != nil {
		slog.Error("Failed to prepare output", "dir", dir, "error", err)
		return failure(msgs.saveFailed, msgs.with(Params{"error": err.Error()}))
	}

	if err := pl.write(ctx, r, path); err != nil {
		slog.Error("Failed to generate output", "path", path, "error", err)
		removeQuietly(path)
		return failure(generationKey(msgs, err), msgs.with(Params{"error": err.Error()}))
	}
	slog.Info("Generated output", "path", path, "policy", p)

	switch p {
	case Open:
		if err := r.open(path); err != nil {
			slog.Error("Failed to open output", "path", path, "error", err)
			return failure(msgs.openFailed, msgs.with(Params{"path": path, "error": err.Error()}))
		}
		return success(msgs.opened, msgs.with(Params{"path": path}))
	case CopyToClipboard:
		if err := r.setClipboardFiles(path); err != nil {
			slog.Error("Failed to copy output to clipboard", "path", path, "error", err)
			if transient {
				removeQuietly(path)
			}
			return failure(KeyClipboardFailed, msgs.with(Params{"error": err.Error()}))
		}
		return success(msgs.copied, msgs.with(Params{"path": path}))
	default:
		return success(msgs.saved, msgs.with(Params{"path": path}))
	}
}

func (r *Router) open(path string) error {
	if r.deps.Launcher == nil {
		return errors.New("no launcher available")
	}
	return r.deps.Launcher.Open(path)
}

func generationKey(msgs messages, err error) string {
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return msgs.convertFailed
	}
	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		return msgs.saveFailed
	}
	return msgs.generateFailed
}

func (m messages) with(extra Params) Params {
	out := make(Params, len(m.params)+len(extra))
	for k, v := range m.params {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
