package ipsmap

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by the pipeline wraps exactly one of
// these so callers can tell a broken input apart from a broken join.
var (
	// ErrLoad reports a missing or malformed source file.
	ErrLoad = errors.New("load error")

	// ErrJoinIntegrity reports a join that matched nothing although both
	// sides had rows. It usually means a key format or CRS mismatch.
	ErrJoinIntegrity = errors.New("join integrity error")

	// ErrCRS reports coordinates that are not in (or cannot be brought to)
	// WGS84 longitude/latitude.
	ErrCRS = errors.New("coordinate reference system mismatch")
)

// LoadError carries the file that failed to load.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

func loadErrorf(path, format string, args ...any) error {
	return &LoadError{Path: path, Err: fmt.Errorf(format, args...)}
}

// joinErrorf wraps ErrJoinIntegrity with a description of the failing join.
func joinErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrJoinIntegrity, fmt.Sprintf(format, args...))
}
