package symgroup

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an iname does not correspond to a symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrLeafExpansion is returned when expanding a symbol without children.
	ErrLeafExpansion = errors.New("attempt to expand leaf node")
	// ErrExpandFailed is returned when the engine fails to expand a symbol.
	ErrExpandFailed = errors.New("expand failed")
	// ErrBackendQuery is returned when the symbols of the group can not be
	// read.
	ErrBackendQuery = errors.New("backend query failed")
	// ErrBackendWrite is returned when the engine refuses a new value.
	ErrBackendWrite = errors.New("backend write failed")

	errShortParameters = errors.New("short parameter list")
)

// BackendError is a failed call to the debugger engine. Kind is one of
// ErrExpandFailed, ErrBackendQuery or ErrBackendWrite.
type BackendError struct {
	Kind  error
	Op    string
	Index int
	Err   error
}

func (e *BackendError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s(%d) failed: %v", e.Kind, e.Op, e.Index, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of e.
func (e *BackendError) Is(target error) bool {
	return target == e.Kind
}

func backendError(kind error, op string, index int, err error) error {
	return &BackendError{Kind: kind, Op: op, Index: index, Err: err}
}

func notFound(iname string) error {
	return fmt.Errorf("%w: '%s'", ErrNotFound, iname)
}
