package tender

import (
	"errors"
	"fmt"
)

// ErrHeaderNotFound indicates no "Наименование" header cell was found.
var ErrHeaderNotFound = errors.New("name header not found")

// ErrSameFile indicates the output path points at the original workbook.
var ErrSameFile = errors.New("output path must differ from the original workbook")

// StructuralError reports a workbook whose layout cannot be recognised.
// It is fatal for the file; nothing is written.
type StructuralError struct {
	Path   string
	Marker string
	Err    error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("workbook %q: marker %q: %v", e.Path, e.Marker, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// PersistError reports a failure to copy or save the output workbook. The
// previous output on disk, if any, is still the last good snapshot.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %q: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
