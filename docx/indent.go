// Package docx applies small in-memory fixes to generated Word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const stylesPart = "word/styles.xml"

// BodyStyles are the paragraph styles pandoc uses for running text.
var BodyStyles = []string{"BodyText", "FirstParagraph"}

const zeroIndent = `w:firstLine="0" w:firstLineChars="0"`

var (
	indentTag       = regexp.MustCompile(`<w:ind\b[^>]*?/>`)
	firstLineAttrs  = regexp.MustCompile(`\s+w:(firstLine|firstLineChars|hanging|hangingChars)="[^"]*"`)
	emptyParagraphs = regexp.MustCompile(`<w:pPr\s*/>`)
)

// DisableFirstLineIndent rewrites the named paragraph styles of a DOCX so
// that their first line is not indented. Reference documents for CJK text
// usually indent Body Text by two characters, which looks wrong for pasted
// fragments. Documents without the styles are returned unchanged.
func DisableFirstLineIndent(doc []byte, styleIDs ...string) ([]byte, error) {
	if len(styleIDs) == 0 {
		styleIDs = BodyStyles
	}

	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	for _, f := range zr.File {
		data, err := readPart(f)
		if err != nil {
			return nil, err
		}
		if f.Name == stylesPart {
			xml := string(data)
			for _, id := range styleIDs {
				xml = zeroStyleIndent(xml, id)
			}
			data = []byte(xml)
		}

		hdr := f.FileHeader
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish docx: %w", err)
	}
	return out.Bytes(), nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// zeroStyleIndent edits the <w:style> element with the given styleId.
func zeroStyleIndent(xml, styleID string) string {
	marker := fmt.Sprintf(`w:styleId="%s"`, styleID)
	at := strings.Index(xml, marker)
	if at < 0 {
		return xml
	}
	start := strings.LastIndex(xml[:at], "<w:style ")
	if start < 0 {
		return xml
	}
	length := strings.Index(xml[start:], "</w:style>")
	if length < 0 {
		return xml
	}
	end := start + length

	return xml[:start] + fixIndent(xml[start:end]) + xml[end:]
}

func fixIndent(style string) string {
	if loc := indentTag.FindStringIndex(style); loc != nil {
		tag := firstLineAttrs.ReplaceAllString(style[loc[0]:loc[1]], "")
		tag = strings.TrimSuffix(tag, "/>")
		tag = strings.TrimRight(tag, " ") + " " + zeroIndent + "/>"
		return style[:loc[0]] + tag + style[loc[1]:]
	}

	ind := "<w:ind " + zeroIndent + "/>"
	if i := strings.Index(style, "<w:pPr>"); i >= 0 {
		i += len("<w:pPr>")
		return style[:i] + ind + style[i:]
	}
	if loc := emptyParagraphs.FindStringIndex(style); loc != nil {
		return style[:loc[0]] + "<w:pPr>" + ind + "</w:pPr>" + style[loc[1]:]
	}

	block := "<w:pPr>" + ind + "</w:pPr>"
	if i := strings.Index(style, "<w:rPr"); i >= 0 {
		return style[:i] + block + style[i:]
	}
	return style + block
}
