// Package pandoc converts Markdown and HTML to DOCX by running the pandoc binary.
package pandoc

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"markestedt/pastemd/workflow"
)

// Converter runs pandoc. It implements workflow.DocumentConverter.
type Converter struct {
	path string
}

// New resolves the pandoc binary, falling back to the one on PATH.
func New(path string) (*Converter, error) {
	candidates := []string{path, "pandoc"}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		resolved, err := exec.LookPath(c)
		if err == nil {
			return &Converter{path: resolved}, nil
		}
		slog.Warn("Pandoc not usable", "path", c, "error", err)
	}
	return nil, fmt.Errorf("pandoc not found (configured %q)", path)
}

// Path returns the resolved binary.
func (c *Converter) Path() string {
	return c.path
}

// MarkdownToDocx implements workflow.DocumentConverter.
func (c *Converter) MarkdownToDocx(ctx context.Context, markdown string, opts workflow.ConvertOptions) ([]byte, error) {
	if opts.LatexReplacements {
		markdown = ReplaceUnsupportedLatex(markdown)
	}
	return c.run(ctx, markdownFormat(opts.KeepOriginalFormula), markdown, opts)
}

// HTMLToDocx implements workflow.DocumentConverter.
func (c *Converter) HTMLToDocx(ctx context.Context, html string, opts workflow.ConvertOptions) ([]byte, error) {
	return c.run(ctx, "html", html, opts)
}

func markdownFormat(keepFormula bool) string {
	f := "markdown+tex_math_dollars+tex_math_single_backslash+raw_html+pipe_tables+strikeout+task_lists"
	if keepFormula {
		// formulas stay as their LaTeX source text
		f = "markdown-tex_math_dollars-tex_math_single_backslash-tex_math_double_backslash+raw_html+pipe_tables+strikeout+task_lists"
	}
	return f
}

// Args builds the pandoc command line for a conversion.
func Args(from string, opts workflow.ConvertOptions) []string {
	args := []string{"-f", from, "-t", "docx", "-o", "-"}
	if opts.ReferenceDocx != "" {
		if _, err := os.Stat(opts.ReferenceDocx); err == nil {
			args = append(args, "--reference-doc="+opts.ReferenceDocx)
		} else {
			slog.Warn("Reference docx missing, using pandoc default", "path", opts.ReferenceDocx)
		}
	}
	for _, f := range opts.Filters {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.EqualFold(filepath.Ext(f), ".lua") {
			args = append(args, "--lua-filter="+f)
		} else {
			args = append(args, "--filter="+f)
		}
	}
	return args
}

func (c *Converter) run(ctx context.Context, from, input string, opts workflow.ConvertOptions) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.path, Args(from, opts)...)
	if opts.WorkDir != "" {
		if info, err := os.Stat(opts.WorkDir); err == nil && info.IsDir() {
			cmd.Dir = opts.WorkDir
		}
	}
	hideWindow(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &workflow.ConversionError{Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	if stdout.Len() == 0 {
		return nil, &workflow.ConversionError{Output: strings.TrimSpace(stderr.String()), Err: fmt.Errorf("pandoc produced no output")}
	}
	if stderr.Len() > 0 {
		slog.Debug("Pandoc warnings", "output", strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

var latexReplacements = strings.NewReplacer(
	`\bm{`, `\boldsymbol{`,
	`\operatorname*{`, `\operatorname{`,
	`\tfrac{`, `\frac{`,
	`\lt `, `< `,
	`\gt `, `> `,
	`\le `, `\leq `,
	`\ge `, `\geq `,
	`\textsf{`, `\mathsf{`,
)

// ReplaceUnsupportedLatex rewrites LaTeX commands that pandoc's math
// reader does not know into equivalents it does.
func ReplaceUnsupportedLatex(markdown string) string {
	return latexReplacements.Replace(markdown)
}
