package postprocess

import (
	"log/slog"
)

// Processor is a function that rewrites Markdown text
type Processor func(text string) string

// Named pairs a processor with a label used in debug logs
type Named struct {
	Name string
	Fn   Processor
}

// Pipeline runs a series of processors in sequence
type Pipeline struct {
	processors []Named
}

// NewPipeline creates a new processing pipeline
func NewPipeline(processors ...Named) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs all processors in sequence
func (p *Pipeline) Process(text string) string {
	result := text
	for _, proc := range p.processors {
		before := len(result)
		result = proc.Fn(result)
		slog.Debug("Markdown processor applied", "processor", proc.Name, "before", before, "after", len(result))
	}
	return result
}

// AddProcessor adds a processor to the pipeline
func (p *Pipeline) AddProcessor(name string, fn Processor) {
	p.processors = append(p.processors, Named{Name: name, Fn: fn})
}

// Options select the optional rewrites of the Markdown pipeline
type Options struct {
	FixSingleDollarBlock bool
}

// MarkdownPipeline normalizes Markdown for the converter. Math delimiters
// are only touched for Markdown sources, so this is not used for HTML.
func MarkdownPipeline(opts Options) *Pipeline {
	p := NewPipeline(Named{Name: "normalize", Fn: Normalize})
	p.AddProcessor("latex", func(text string) string {
		return ConvertLatexDelimiters(text, opts.FixSingleDollarBlock)
	})
	return p
}
