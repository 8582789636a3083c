package importer

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/reign-theme/demo-install/internal/model"
)

var (
	// ErrPartial marks an import that recorded statement errors. Everything
	// that succeeded stays committed; nothing is rolled back.
	ErrPartial = errors.New("import partially applied")
	// ErrNoAdmin is returned when the run has no administrator to protect.
	ErrNoAdmin = errors.New("no administrator identity to protect")
	// ErrInconsistentPrefix is recorded for a file whose dump names a
	// different source prefix than the rest of the run.
	ErrInconsistentPrefix = errors.New("inconsistent source prefix")
)

// ImportError is the aggregate failure of a run. It carries the result so
// callers can report what was applied.
type ImportError struct {
	Result *model.ImportResult
	Err    error
}

func (e *ImportError) Error() string {
	n := len(multierr.Errors(e.Err))
	return fmt.Sprintf("%s: %d error(s): %v", ErrPartial, n, e.Err)
}

// Unwrap exposes ErrPartial and every collected error to errors.Is.
func (e *ImportError) Unwrap() []error {
	return append([]error{ErrPartial}, multierr.Errors(e.Err)...)
}

// tableError ties an error to the live table it happened on.
type tableError struct {
	Table string
	Err   error
}

func (e *tableError) Error() string {
	return e.Table + ": " + e.Err.Error()
}

func (e *tableError) Unwrap() error { return e.Err }
