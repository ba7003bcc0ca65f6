//go:build !windows

package main

import (
	"context"

	"markestedt/pastemd/i18n"
)

// runWithTray runs the agent headless.
func runWithTray(_ context.Context, _ context.CancelFunc, _ *i18n.Catalog, _ trayActions, run func() error) error {
	return run()
}
