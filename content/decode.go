package content

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var errUndecodable = errors.New("byte sequence is not valid in this encoding")

// decoder turns raw file bytes into text, or fails.
type decoder struct {
	name   string
	decode func([]byte) (string, error)
}

// decoders are tried in order; the first success wins.
// GB2312 is a subset of GBK, so its slot is taken by GB18030 which
// golang.org/x/text ships and which covers the remaining CJK range.
var decoders = []decoder{
	{name: "utf-8", decode: decodeUTF8},
	{name: "gbk", decode: decodeWith(simplifiedchinese.GBK)},
	{name: "gb18030", decode: decodeWith(simplifiedchinese.GB18030)},
	{name: "utf-8-sig", decode: decodeUTF8BOM},
}

func decodeUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errUndecodable
	}
	return string(bytes.TrimPrefix(b, utf8BOM)), nil
}

func decodeUTF8BOM(b []byte) (string, error) {
	if !bytes.HasPrefix(b, utf8BOM) {
		return "", errUndecodable
	}
	return decodeUTF8(b[len(utf8BOM):])
}

// decodeWith wraps an x/text encoding. Those decoders substitute U+FFFD
// for invalid input instead of failing, so a replacement rune counts as failure.
func decodeWith(enc encoding.Encoding) func([]byte) (string, error) {
	return func(b []byte) (string, error) {
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return "", err
		}
		if bytes.ContainsRune(out, utf8.RuneError) {
			return "", errUndecodable
		}
		return string(out), nil
	}
}

// FileReadError describes a referenced file that could not be read.
type FileReadError struct {
	Name string
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Name, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

// ReadFile reads a text file trying each supported encoding in turn.
// It returns the decoded text and the name of the encoding that worked.
func ReadFile(path string) (string, string, error) {
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", &FileReadError{Name: name, Path: path, Err: err}
	}

	var tried []string
	for _, d := range decoders {
		text, err := d.decode(data)
		if err == nil {
			return text, d.name, nil
		}
		tried = append(tried, d.name)
	}

	return "", "", &FileReadError{
		Name: name,
		Path: path,
		Err:  fmt.Errorf("no supported encoding matched (tried %s)", strings.Join(tried, ", ")),
	}
}
