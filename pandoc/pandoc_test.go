package pandoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/pastemd/workflow"
)

func TestArgs(t *testing.T) {
	ref := filepath.Join(t.TempDir(), "ref.docx")
	require.NoError(t, os.WriteFile(ref, []byte("x"), 0644))

	args := Args("html", workflow.ConvertOptions{
		ReferenceDocx: ref,
		Filters:       []string{"fix.lua", " ", "pandoc-crossref"},
	})

	assert.Equal(t, []string{
		"-f", "html", "-t", "docx", "-o", "-",
		"--reference-doc=" + ref,
		"--lua-filter=fix.lua",
		"--filter=pandoc-crossref",
	}, args)
}

func TestArgsSkipsMissingReference(t *testing.T) {
	args := Args("markdown", workflow.ConvertOptions{ReferenceDocx: filepath.Join(t.TempDir(), "missing.docx")})
	assert.Equal(t, []string{"-f", "markdown", "-t", "docx", "-o", "-"}, args)
}

func TestMarkdownFormat(t *testing.T) {
	assert.Contains(t, markdownFormat(false), "+tex_math_dollars")
	assert.Contains(t, markdownFormat(true), "-tex_math_dollars")
}

func TestReplaceUnsupportedLatex(t *testing.T) {
	assert.Equal(t, `$\boldsymbol{x} \leq \operatorname{argmax}$`, ReplaceUnsupportedLatex(`$\bm{x} \le \operatorname*{argmax}$`))
}

func TestNewFailsWithoutBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := New(filepath.Join(t.TempDir(), "no-pandoc"))
	assert.Error(t, err)
}
