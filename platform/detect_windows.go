//go:build windows

package platform

import (
	"log/slog"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// WindowsDetector classifies the process owning the foreground window.
type WindowsDetector struct{}

// NewDetector returns the foreground application detector.
func NewDetector() Detector {
	return WindowsDetector{}
}

func (WindowsDetector) Detect() string {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return AppNone
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid == 0 {
		return AppNone
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		slog.Debug("Cannot open foreground process", "pid", pid, "error", err)
		return AppNone
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_PATH)
	n := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &n); err != nil {
		slog.Debug("Cannot query foreground image", "pid", pid, "error", err)
		return AppNone
	}

	exe := filepath.Base(windows.UTF16ToString(buf[:n]))
	app := AppForExecutable(exe)
	slog.Debug("Foreground application", "exe", exe, "app", app)
	return app
}
