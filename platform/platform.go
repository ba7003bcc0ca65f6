// Package platform wraps the OS facilities PasteMD needs: the global
// hotkey, the clipboard, foreground application detection and the Office
// automation used to insert documents.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"markestedt/pastemd/content"
)

// ErrUnsupported is returned by facilities this OS does not provide.
var ErrUnsupported = errors.New("not supported on " + runtime.GOOS)

// KeyCombo represents a keyboard key combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   int // Virtual key code
}

// Hotkey reports each press of a global key combination.
type Hotkey interface {
	Listen(ctx context.Context, combo KeyCombo) (<-chan time.Time, error)
}

// Clipboard gives read access to the formats PasteMD classifies and can
// put file references back.
type Clipboard interface {
	content.Source
	SetFiles(paths []string) error
}

// Application names reported by Detector. They match workflow targets.
const (
	AppWord     = "word"
	AppWps      = "wps"
	AppExcel    = "excel"
	AppWpsExcel = "wps_excel"
	AppNone     = "none"
)

// Detector names the application owning the foreground window.
type Detector interface {
	Detect() string
}

// Launcher opens files with the default OS handler.
type Launcher struct{}

// Open starts the default handler for target (a path or URL) without
// waiting for it.
func (Launcher) Open(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", target)
	default:
		return fmt.Errorf("open %s: %w", target, ErrUnsupported)
	}

	slog.Debug("Opening with default handler", "target", target)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	go cmd.Wait()
	return nil
}

// appByExecutable maps foreground executables to application names.
var appByExecutable = map[string]string{
	"winword.exe": AppWord,
	"wps.exe":     AppWps,
	"excel.exe":   AppExcel,
	"et.exe":      AppWpsExcel,
}

// AppForExecutable classifies an executable base name, case-insensitively.
func AppForExecutable(name string) string {
	if app, ok := appByExecutable[strings.ToLower(name)]; ok {
		return app
	}
	return AppNone
}

// progIDs lists the COM automation names of each application, tried in order.
var progIDs = map[string][]string{
	AppWord:     {"Word.Application"},
	AppWps:      {"kwps.Application", "wps.Application"},
	AppExcel:    {"Excel.Application"},
	AppWpsExcel: {"ket.Application", "et.Application"},
}

// OfficeDocument inserts DOCX files into a running word processor.
type OfficeDocument struct {
	app     string
	progIDs []string
}

// NewOfficeDocument returns the inserter for AppWord or AppWps.
func NewOfficeDocument(app string) *OfficeDocument {
	return &OfficeDocument{app: app, progIDs: progIDs[app]}
}

// OfficeSheet writes tables into a running spreadsheet.
type OfficeSheet struct {
	app     string
	progIDs []string
}

// NewOfficeSheet returns the inserter for AppExcel or AppWpsExcel.
func NewOfficeSheet(app string) *OfficeSheet {
	return &OfficeSheet{app: app, progIDs: progIDs[app]}
}
