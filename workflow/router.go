package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	mdtable "github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"markestedt/pastemd/content"
	"markestedt/pastemd/docx"
	"markestedt/pastemd/postprocess"
	"markestedt/pastemd/table"
)

// targetClass groups targets that share a flow.
type targetClass int

const (
	classNone targetClass = iota
	classDocument
	classSheet
)

type route struct {
	kind  content.Kind
	class targetClass
}

type flow func(r *Router, ctx context.Context, d content.Descriptor, t Target, p Policy) []Outcome

// routes is the complete routing matrix. Every (kind, class) pair has an entry.
var routes = map[route]flow{
	{content.RichText, classDocument}: (*Router).richToDocument,
	{content.RichText, classSheet}:    (*Router).richToPolicy,
	{content.RichText, classNone}:     (*Router).htmlToPolicy,

	{content.PlainText, classDocument}: (*Router).plainToDocument,
	{content.PlainText, classSheet}:    (*Router).plainToSheet,
	{content.PlainText, classNone}:     (*Router).plainToPolicy,

	{content.FileSet, classDocument}: (*Router).filesToDocument,
	{content.FileSet, classSheet}:    (*Router).filesToSheet,
	{content.FileSet, classNone}:     (*Router).filesToPolicy,

	{content.Empty, classDocument}: (*Router).empty,
	{content.Empty, classSheet}:    (*Router).empty,
	{content.Empty, classNone}:     (*Router).empty,
}

// Router executes one invocation's flow. Build a new one per invocation
// from that invocation's configuration snapshot.
type Router struct {
	deps     Deps
	settings Settings
	markdown *postprocess.Pipeline
}

// NewRouter fills in default collaborators that were left nil.
func NewRouter(deps Deps, settings Settings) *Router {
	if deps.ParseTable == nil {
		deps.ParseTable = table.Parse
	}
	if deps.WriteSpreadsheet == nil {
		deps.WriteSpreadsheet = table.WriteXLSX
	}
	if deps.FixIndent == nil {
		deps.FixIndent = func(doc []byte) ([]byte, error) {
			return docx.DisableFirstLineIndent(doc)
		}
	}
	if deps.HTMLToMarkdown == nil {
		conv := converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				mdtable.NewTablePlugin(),
			),
		)
		deps.HTMLToMarkdown = func(html string) (string, error) {
			return conv.ConvertString(html)
		}
	}
	if deps.OnProgress == nil {
		deps.OnProgress = func(Outcome) {}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Router{
		deps:     deps,
		settings: settings,
		markdown: postprocess.MarkdownPipeline(settings.Markdown),
	}
}

func (r *Router) classify(t Target) targetClass {
	switch t {
	case Word, Wps:
		return classDocument
	case Excel, WpsExcel:
		if r.settings.EnableExcel {
			return classSheet
		}
	}
	return classNone
}

// Route runs the flow selected by content kind and target. It never panics
// and always returns at least one Outcome. Files that could not be read
// come first, one failure each, followed by the flow's own outcomes.
func (r *Router) Route(ctx context.Context, d content.Descriptor, t Target, p Policy) []Outcome {
	var out []Outcome
	for _, skipped := range d.Skipped {
		out = append(out, failure(KeyFileReadFailed, Params{"filename": skipped.Name, "error": skipped.Err.Error()}))
	}
	return append(out, r.dispatch(ctx, d, t, p)...)
}

func (r *Router) dispatch(ctx context.Context, d content.Descriptor, t Target, p Policy) (out []Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Workflow panicked", "kind", d.Kind, "target", t, "panic", rec)
			out = []Outcome{failure(KeyGenericFailure, Params{"error": fmt.Sprint(rec)})}
		}
	}()

	key := route{kind: d.Kind, class: r.classify(t)}
	f, ok := routes[key]
	if !ok {
		return []Outcome{failure(KeyGenericFailure, Params{"error": "no flow for " + d.Kind.String()})}
	}
	slog.Debug("Routing", "kind", d.Kind, "target", t, "policy", p)
	return f(r, ctx, d, t, p)
}

func (r *Router) empty(context.Context, content.Descriptor, Target, Policy) []Outcome {
	return []Outcome{failure(KeyClipboardEmpty, nil)}
}

func (r *Router) richToDocument(ctx context.Context, d content.Descriptor, t Target, p Policy) []Outcome {
	src := htmlSource(d.HTML)
	return []Outcome{r.insertDocument(ctx, t, p, src, success("workflow.html.insert_success", Params{"app": t.AppName()}))}
}

// richToPolicy handles rich text aimed at a spreadsheet: it is rendered as
// Markdown and treated like plain text without a target.
func (r *Router) richToPolicy(ctx context.Context, d content.Descriptor, t Target, p Policy) []Outcome {
	md := d.Text
	if isBlank(md) {
		converted, err := r.deps.HTMLToMarkdown(d.HTML)
		if err != nil {
			slog.Warn("HTML to Markdown rendering failed, using HTML", "error", err)
			return r.htmlToPolicy(ctx, d, t, p)
		}
		md = converted
	}
	return r.plainToPolicy(ctx, content.Descriptor{Kind: content.PlainText, Text: md}, t, p)
}

func (r *Router) htmlToPolicy(ctx context.Context, d content.Descriptor, _ Target, p Policy) []Outcome {
	return []Outcome{r.applyPolicy(ctx, htmlPayload(d.HTML), p)}
}

func (r *Router) plainToDocument(ctx context.Context, d content.Descriptor, t Target, p Policy) []Outcome {
	src := markdownSource(d.Text, "")
	return []Outcome{r.insertDocument(ctx, t, p, src, success("workflow.word.insert_success", Params{"app": t.AppName()}))}
}

func (r *Router) plainToSheet(ctx context.Context, d content.Descriptor, t Target, _ Policy) []Outcome {
	return []Outcome{r.insertTable(ctx, t, d.Text)}
}

func (r *Router) plainToPolicy(ctx context.Context, d content.Descriptor, _ Target, p Policy) []Outcome {
	if r.settings.EnableExcel {
		if rows := r.deps.ParseTable(d.Text); rows != nil {
			return []Outcome{r.applyPolicy(ctx, tablePayload(rows), p)}
		}
	}
	return []Outcome{r.applyPolicy(ctx, markdownPayload(d.Text, "", ""), p)}
}

func (r *Router) filesToDocument(ctx context.Context, d content.Descriptor, t Target, p Policy) []Outcome {
	r.announceFiles(d.Files)
	src := markdownSource(content.Merge(d.Files), filepath.Dir(d.Files[0].Path))
	src.slug = baseSlug(d.Files[0].Name)

	done := success("workflow.md_file.insert_success", Params{"app": t.AppName()})
	if len(d.Files) > 1 {
		done = success("workflow.md_file.insert_success_multi", Params{"app": t.AppName(), "count": len(d.Files)})
	}
	return []Outcome{r.insertDocument(ctx, t, p, src, done)}
}

// filesToSheet only looks at the first file.
func (r *Router) filesToSheet(ctx context.Context, d content.Descriptor, t Target, _ Policy) []Outcome {
	return []Outcome{r.insertTable(ctx, t, d.Files[0].Content)}
}

func (r *Router) filesToPolicy(ctx context.Context, d content.Descriptor, _ Target, p Policy) []Outcome {
	if p == NoOp {
		return []Outcome{failure(KeyNoAppDetected, nil)}
	}
	r.announceFiles(d.Files)

	var out []Outcome
	succeeded := 0
	for _, f := range d.Files {
		o := r.applyPolicy(ctx, markdownPayload(f.Content, filepath.Dir(f.Path), baseSlug(f.Name)).forFile(f.Name), p)
		if o.Succeeded {
			succeeded++
		}
		out = append(out, o)
	}
	if len(d.Files) > 1 && succeeded > 0 {
		out = append(out, success(KeyBatchSuccess, Params{"count": succeeded}))
	}
	return out
}
