//go:build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"markestedt/pastemd/table"
)

const (
	wdCollapseEnd = 0
	sFalse        = 1
)

// withApplication attaches to the first running instance of progIDs and
// calls fn with its Application object. It reports false when none runs.
func withApplication(ctx context.Context, progIDs []string, fn func(app *ole.IDispatch) error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	// COM apartments are per thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			return false, fmt.Errorf("CoInitializeEx failed: %w", err)
		}
	}
	defer ole.CoUninitialize()

	for _, id := range progIDs {
		unknown, err := oleutil.GetActiveObject(id)
		if err != nil {
			slog.Debug("No running instance", "progid", id, "error", err)
			continue
		}
		app, err := unknown.QueryInterface(ole.IID_IDispatch)
		unknown.Release()
		if err != nil {
			return false, fmt.Errorf("%s has no automation interface: %w", id, err)
		}
		defer app.Release()
		return true, fn(app)
	}
	return false, nil
}

func dispatch(obj *ole.IDispatch, name string, args ...any) (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(obj, name, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return v.ToIDispatch(), nil
}

// Insert places the document at the current selection of the word processor.
func (d *OfficeDocument) Insert(ctx context.Context, path string, moveCursorToEnd bool) (bool, error) {
	return withApplication(ctx, d.progIDs, func(app *ole.IDispatch) error {
		sel, err := dispatch(app, "Selection")
		if err != nil {
			return err
		}
		defer sel.Release()

		rng, err := dispatch(sel, "Range")
		if err != nil {
			return err
		}
		defer rng.Release()

		if _, err := oleutil.CallMethod(rng, "InsertFile", path); err != nil {
			return fmt.Errorf("InsertFile: %w", err)
		}
		if moveCursorToEnd {
			if _, err := oleutil.CallMethod(rng, "Collapse", wdCollapseEnd); err != nil {
				return fmt.Errorf("collapse range: %w", err)
			}
			if _, err := oleutil.CallMethod(rng, "Select"); err != nil {
				return fmt.Errorf("select range: %w", err)
			}
		}
		slog.Info("Inserted document", "app", d.app, "path", path)
		return nil
	})
}

// InsertTable writes rows starting at the active cell.
func (s *OfficeSheet) InsertTable(ctx context.Context, rows [][]string, keepFormat bool) (bool, error) {
	return withApplication(ctx, s.progIDs, func(app *ole.IDispatch) error {
		sheet, err := dispatch(app, "ActiveSheet")
		if err != nil {
			return err
		}
		defer sheet.Release()

		active, err := dispatch(app, "ActiveCell")
		if err != nil {
			return err
		}
		defer active.Release()

		row0, err := oleutil.GetProperty(active, "Row")
		if err != nil {
			return fmt.Errorf("get active row: %w", err)
		}
		col0, err := oleutil.GetProperty(active, "Column")
		if err != nil {
			return fmt.Errorf("get active column: %w", err)
		}
		top, left := int(row0.Val), int(col0.Val)

		for i, row := range rows {
			for j, raw := range row {
				if err := writeCell(sheet, top+i, left+j, table.CellValue(raw, keepFormat), keepFormat && i == 0); err != nil {
					return err
				}
			}
		}
		slog.Info("Inserted table", "app", s.app, "rows", len(rows))
		return nil
	})
}

func writeCell(sheet *ole.IDispatch, row, col int, value any, bold bool) error {
	cell, err := dispatch(sheet, "Cells", row, col)
	if err != nil {
		return err
	}
	defer cell.Release()

	if _, err := oleutil.PutProperty(cell, "Value", value); err != nil {
		return fmt.Errorf("set cell (%d,%d): %w", row, col, err)
	}
	if !bold {
		return nil
	}
	font, err := dispatch(cell, "Font")
	if err != nil {
		return err
	}
	defer font.Release()
	_, err = oleutil.PutProperty(font, "Bold", true)
	return err
}
