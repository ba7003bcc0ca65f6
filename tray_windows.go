//go:build windows

package main

import (
	"context"
	"log/slog"

	"markestedt/pastemd/i18n"
	"markestedt/pastemd/systray"
)

// runWithTray runs the agent in the background and the tray on the calling
// goroutine until either stops.
func runWithTray(ctx context.Context, cancel context.CancelFunc, catalog *i18n.Catalog, actions trayActions, run func() error) error {
	tray := systray.NewSystrayManager(catalog, systray.Actions{
		Open:      actions.open,
		SaveDir:   actions.saveDir,
		Dashboard: actions.dashboard,
		Reload:    actions.reload,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run()
		tray.Stop()
	}()

	go func() {
		select {
		case <-tray.WaitForQuit():
			cancel()
		case <-ctx.Done():
			tray.Stop()
		}
	}()

	tray.Run()
	cancel()

	err := <-errCh
	if err != nil {
		slog.Error("Agent error", "error", err)
	}
	return err
}
