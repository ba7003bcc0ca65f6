package workflow

import "fmt"

// ConversionError is a failed document conversion. Output holds the
// converter's diagnostics.
type ConversionError struct {
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("conversion failed: %v", e.Err)
	}
	return fmt.Sprintf("conversion failed: %v: %s", e.Err, e.Output)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// InsertionError is a target application that could not be reached or
// rejected the content.
type InsertionError struct {
	App string
	Err error
}

func (e *InsertionError) Error() string {
	return fmt.Sprintf("insert into %s failed: %v", e.App, e.Err)
}

func (e *InsertionError) Unwrap() error {
	return e.Err
}

// PersistenceError is a failed write of a generated artifact.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
