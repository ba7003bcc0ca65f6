//go:build windows

package platform

import (
	"bytes"
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"markestedt/pastemd/content"
)

var (
	user32                     = windows.NewLazySystemDLL("user32.dll")
	kernel32                   = windows.NewLazySystemDLL("kernel32.dll")
	shell32                    = windows.NewLazySystemDLL("shell32.dll")
	openClipboard              = user32.NewProc("OpenClipboard")
	closeClipboard             = user32.NewProc("CloseClipboard")
	emptyClipboard             = user32.NewProc("EmptyClipboard")
	getClipboardData           = user32.NewProc("GetClipboardData")
	setClipboardData           = user32.NewProc("SetClipboardData")
	isClipboardFormatAvailable = user32.NewProc("IsClipboardFormatAvailable")
	registerClipboardFormat    = user32.NewProc("RegisterClipboardFormatW")
	globalAlloc                = kernel32.NewProc("GlobalAlloc")
	globalFree                 = kernel32.NewProc("GlobalFree")
	globalLock                 = kernel32.NewProc("GlobalLock")
	globalUnlock               = kernel32.NewProc("GlobalUnlock")
	globalSize                 = kernel32.NewProc("GlobalSize")
	dragQueryFile              = shell32.NewProc("DragQueryFileW")
)

const (
	cfUnicodeText = 13
	cfHDrop       = 15
	gmemMoveable  = 0x0002
	gmemZeroInit  = 0x0040

	clipboardAttempts = 3
	clipboardBackoff  = 30 * time.Millisecond
)

// dropFiles is the DROPFILES header preceding a CF_HDROP file list.
type dropFiles struct {
	pFiles uint32
	ptX    int32
	ptY    int32
	fNC    int32
	fWide  int32
}

var _ content.Holder = (*WindowsClipboard)(nil)

// WindowsClipboard implements Clipboard on the Win32 clipboard.
type WindowsClipboard struct {
	htmlFormat uintptr
}

// NewClipboard returns the Windows clipboard.
func NewClipboard() Clipboard {
	name, _ := windows.UTF16PtrFromString("HTML Format")
	f, _, _ := registerClipboardFormat.Call(uintptr(unsafe.Pointer(name)))
	return &WindowsClipboard{htmlFormat: f}
}

// Text returns CF_UNICODETEXT, or "" when there is none.
func (c *WindowsClipboard) Text() (string, error) {
	var text string
	err := c.withClipboard(func() (err error) {
		text, err = c.readText()
		return err
	})
	return text, err
}

// HTML returns the raw CF_HTML container, or nil when there is none.
func (c *WindowsClipboard) HTML() ([]byte, error) {
	var raw []byte
	err := c.withClipboard(func() (err error) {
		raw, err = c.readHTML()
		return err
	})
	return raw, err
}

// Files returns the paths of a CF_HDROP file list.
func (c *WindowsClipboard) Files() ([]string, error) {
	var paths []string
	err := c.withClipboard(func() (err error) {
		paths, err = c.readFiles()
		return err
	})
	return paths, err
}

// Hold opens the clipboard once and lets fn read every format from it.
func (c *WindowsClipboard) Hold(fn func(open content.Source) error) error {
	return c.withClipboard(func() error {
		return fn(openClipboardView{c})
	})
}

// openClipboardView reads from a clipboard that is already open.
type openClipboardView struct {
	c *WindowsClipboard
}

func (v openClipboardView) Text() (string, error)    { return v.c.readText() }
func (v openClipboardView) HTML() ([]byte, error)    { return v.c.readHTML() }
func (v openClipboardView) Files() ([]string, error) { return v.c.readFiles() }

func (c *WindowsClipboard) readText() (string, error) {
	if !formatAvailable(cfUnicodeText) {
		return "", nil
	}
	data, err := lockedData(cfUnicodeText)
	if err != nil || data == 0 {
		return "", err
	}
	defer unlock(cfUnicodeText)
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(data))), nil
}

func (c *WindowsClipboard) readHTML() ([]byte, error) {
	if c.htmlFormat == 0 || !formatAvailable(c.htmlFormat) {
		return nil, nil
	}
	h, _, _ := getClipboardData.Call(c.htmlFormat)
	if h == 0 {
		return nil, nil
	}
	l, _, err := globalLock.Call(h)
	if l == 0 {
		return nil, fmt.Errorf("GlobalLock failed: %w", err)
	}
	defer globalUnlock.Call(h)

	size, _, _ := globalSize.Call(h)
	return bytes.TrimRight(bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(l)), size)), "\x00"), nil
}

func (c *WindowsClipboard) readFiles() ([]string, error) {
	if !formatAvailable(cfHDrop) {
		return nil, nil
	}
	h, _, _ := getClipboardData.Call(cfHDrop)
	if h == 0 {
		return nil, nil
	}

	var paths []string
	count, _, _ := dragQueryFile.Call(h, 0xFFFFFFFF, 0, 0)
	for i := uintptr(0); i < count; i++ {
		n, _, _ := dragQueryFile.Call(h, i, 0, 0)
		buf := make([]uint16, n+1)
		dragQueryFile.Call(h, i, uintptr(unsafe.Pointer(&buf[0])), n+1)
		paths = append(paths, windows.UTF16ToString(buf))
	}
	return paths, nil
}

// SetFiles replaces the clipboard with a CF_HDROP list of paths.
func (c *WindowsClipboard) SetFiles(paths []string) error {
	var list []uint16
	for _, p := range paths {
		u, err := windows.UTF16FromString(p)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", p, err)
		}
		list = append(list, u...) // keeps each path's NUL
	}
	list = append(list, 0)

	header := dropFiles{pFiles: uint32(unsafe.Sizeof(dropFiles{})), fWide: 1}
	size := uintptr(header.pFiles) + uintptr(len(list))*2

	h, _, err := globalAlloc.Call(gmemMoveable|gmemZeroInit, size)
	if h == 0 {
		return fmt.Errorf("GlobalAlloc failed: %w", err)
	}
	l, _, err := globalLock.Call(h)
	if l == 0 {
		globalFree.Call(h)
		return fmt.Errorf("GlobalLock failed: %w", err)
	}
	*(*dropFiles)(unsafe.Pointer(l)) = header
	copy(unsafe.Slice((*uint16)(unsafe.Pointer(l+uintptr(header.pFiles))), len(list)), list)
	globalUnlock.Call(h)

	return c.withClipboard(func() error {
		emptyClipboard.Call()
		r, _, err := setClipboardData.Call(cfHDrop, h)
		if r == 0 {
			// ownership only passes to the system on success
			globalFree.Call(h)
			return fmt.Errorf("SetClipboardData failed: %w", err)
		}
		return nil
	})
}

// withClipboard opens the clipboard, retrying while another process holds
// it, and runs fn while it is open.
func (c *WindowsClipboard) withClipboard(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < clipboardAttempts; attempt++ {
		r, _, err := openClipboard.Call(0)
		if r != 0 {
			defer closeClipboard.Call()
			return fn()
		}
		lastErr = err
		time.Sleep(clipboardBackoff)
	}
	return fmt.Errorf("%w: OpenClipboard failed after %d attempts: %v", content.ErrClipboardAccess, clipboardAttempts, lastErr)
}

func formatAvailable(format uintptr) bool {
	r, _, _ := isClipboardFormatAvailable.Call(format)
	return r != 0
}

func lockedData(format uintptr) (uintptr, error) {
	h, _, err := getClipboardData.Call(format)
	if h == 0 {
		if err != nil && err != syscall.Errno(0) {
			return 0, fmt.Errorf("GetClipboardData failed: %w", err)
		}
		return 0, nil
	}
	l, _, err := globalLock.Call(h)
	if l == 0 {
		return 0, fmt.Errorf("GlobalLock failed: %w", err)
	}
	return l, nil
}

func unlock(format uintptr) {
	if h, _, _ := getClipboardData.Call(format); h != 0 {
		globalUnlock.Call(h)
	}
}
