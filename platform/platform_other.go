//go:build !windows

package platform

import (
	"context"
	"fmt"
	"time"
)

type unsupportedHotkey struct{}

// NewHotkey returns a listener that always fails; global hotkeys need Windows.
func NewHotkey() Hotkey {
	return unsupportedHotkey{}
}

func (unsupportedHotkey) Listen(context.Context, KeyCombo) (<-chan time.Time, error) {
	return nil, fmt.Errorf("global hotkey: %w", ErrUnsupported)
}

type unsupportedClipboard struct{}

// NewClipboard returns a clipboard that reports every format as absent.
func NewClipboard() Clipboard {
	return unsupportedClipboard{}
}

func (unsupportedClipboard) Text() (string, error)    { return "", nil }
func (unsupportedClipboard) HTML() ([]byte, error)    { return nil, nil }
func (unsupportedClipboard) Files() ([]string, error) { return nil, nil }

func (unsupportedClipboard) SetFiles([]string) error {
	return fmt.Errorf("file clipboard: %w", ErrUnsupported)
}

type noneDetector struct{}

// NewDetector returns a detector that never finds a target application.
func NewDetector() Detector {
	return noneDetector{}
}

func (noneDetector) Detect() string { return AppNone }

// Insert reports the application as unreachable; Office automation needs Windows.
func (d *OfficeDocument) Insert(context.Context, string, bool) (bool, error) {
	return false, nil
}

// InsertTable reports the application as unreachable.
func (s *OfficeSheet) InsertTable(context.Context, [][]string, bool) (bool, error) {
	return false, nil
}
