//go:build windows

package systray

import (
	_ "embed"
	"log/slog"

	"github.com/getlantern/systray"

	"markestedt/pastemd/i18n"
)

//go:embed icon.ico
var icon []byte

// Actions are the operations behind the tray menu. Dashboard may be empty
// when the web server is disabled, which hides its entry.
type Actions struct {
	Open      func(target string) error
	SaveDir   func() string
	Dashboard string
	Reload    func() error
}

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	catalog *i18n.Catalog
	actions Actions
	quit    chan struct{}
}

// NewSystrayManager creates a new systray manager
func NewSystrayManager(catalog *i18n.Catalog, actions Actions) *SystrayManager {
	return &SystrayManager{
		catalog: catalog,
		actions: actions,
		quit:    make(chan struct{}),
	}
}

// Run starts the system tray (blocking call). It must run on the main goroutine.
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

func (m *SystrayManager) label(key string) string {
	return m.catalog.T(key, nil)
}

func (m *SystrayManager) onReady() {
	systray.SetIcon(icon)
	systray.SetTitle(m.label("app.title"))
	systray.SetTooltip(m.label("app.title"))

	mSaveDir := systray.AddMenuItem(m.label("app.tray.open_save_dir"), "")
	mDashboard := systray.AddMenuItem(m.label("app.tray.dashboard"), "")
	if m.actions.Dashboard == "" {
		mDashboard.Hide()
	}
	mReload := systray.AddMenuItem(m.label("app.tray.reload_config"), "")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem(m.label("app.tray.quit"), "")

	go func() {
		for {
			select {
			case <-mSaveDir.ClickedCh:
				m.open(m.actions.SaveDir())
			case <-mDashboard.ClickedCh:
				m.open(m.actions.Dashboard)
			case <-mReload.ClickedCh:
				m.reload()
			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				close(m.quit)
				systray.Quit()
				return
			}
		}
	}()
}

func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
}

func (m *SystrayManager) open(target string) {
	if target == "" || m.actions.Open == nil {
		return
	}
	if err := m.actions.Open(target); err != nil {
		slog.Error("Failed to open from tray", "target", target, "error", err)
	}
}

func (m *SystrayManager) reload() {
	if m.actions.Reload == nil {
		return
	}
	if err := m.actions.Reload(); err != nil {
		slog.Warn("Config reload rejected", "error", err)
		return
	}
	slog.Info("Configuration reloaded from tray")
}
