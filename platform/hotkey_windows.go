//go:build windows

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	getMessage          = user32.NewProc("GetMessageW")
	postThreadMessage   = user32.NewProc("PostThreadMessageW")
	getAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
)

const (
	whKeyboardLL = 13
	wmQuit       = 0x0012
	wmKeydown    = 0x0100
	wmSyskeydown = 0x0104
)

const (
	vkShift = 0x10
	vkCtrl  = 0x11
	vkAlt   = 0x12
	vkLwin  = 0x5B
	vkRwin  = 0x5C
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// WindowsHotkey detects a key combination with a low-level keyboard hook.
// Holding the combination down reports a single press.
type WindowsHotkey struct {
	mu     sync.Mutex
	combo  KeyCombo
	down   bool
	events chan time.Time
}

// NewHotkey creates a new Windows hotkey listener
func NewHotkey() Hotkey {
	return &WindowsHotkey{}
}

// Listen installs the hook and reports presses until ctx is done.
func (h *WindowsHotkey) Listen(ctx context.Context, combo KeyCombo) (<-chan time.Time, error) {
	if combo.Key == 0 {
		return nil, fmt.Errorf("hotkey needs a non-modifier key")
	}

	h.mu.Lock()
	h.combo = combo
	h.down = false
	h.events = make(chan time.Time, 4)
	h.mu.Unlock()

	ready := make(chan uint32, 1)
	errCh := make(chan error, 1)
	go h.loop(ready, errCh)

	var threadID uint32
	select {
	case err := <-errCh:
		return nil, err
	case threadID = <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	go func() {
		<-ctx.Done()
		postThreadMessage.Call(uintptr(threadID), wmQuit, 0, 0)
	}()
	return h.events, nil
}

// loop owns the hook. The hook only fires on the thread that installed it
// while that thread pumps messages.
func (h *WindowsHotkey) loop(ready chan<- uint32, errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	proc := func(nCode int32, wParam uintptr, lParam uintptr) uintptr {
		if nCode >= 0 {
			info := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			h.transition(info.vkCode, wParam == wmKeydown || wParam == wmSyskeydown)
		}
		r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return r
	}

	hook, _, err := setWindowsHookEx.Call(whKeyboardLL, windows.NewCallback(proc), 0, 0)
	if hook == 0 {
		errCh <- fmt.Errorf("SetWindowsHookEx failed: %w", err)
		return
	}
	defer unhookWindowsHookEx.Call(hook)

	ready <- windows.GetCurrentThreadId()

	var m msg
	for {
		r, _, _ := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 is WM_QUIT, -1 an error
		if r == 0 || int32(r) == -1 {
			slog.Debug("Hotkey message loop stopped")
			return
		}
	}
}

// transition tracks the combination's key and emits on its down edge.
func (h *WindowsHotkey) transition(vk uint32, keyDown bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if vk != uint32(h.combo.Key) {
		return
	}
	if !keyDown {
		h.down = false
		return
	}
	if h.down || !modifiersMatch(h.combo) {
		return
	}
	h.down = true

	select {
	case h.events <- time.Now():
	default:
	}
}

func modifiersMatch(combo KeyCombo) bool {
	return isKeyPressed(vkCtrl) == combo.Ctrl &&
		isKeyPressed(vkShift) == combo.Shift &&
		isKeyPressed(vkAlt) == combo.Alt &&
		(isKeyPressed(vkLwin) || isKeyPressed(vkRwin)) == combo.Win
}

func isKeyPressed(vk int) bool {
	r, _, _ := getAsyncKeyState.Call(uintptr(vk))
	return r&0x8000 != 0
}
