// Package errs - Error taxonomy shared by the search core and its image collaborators.
//
// Every error that leaves a package of this module is an *Error carrying a Kind:
// setup and IO errors are fatal to a run, iteration errors are absorbed by the
// search loop. The domain condition itself is one of the sentinels below and is
// matched with errors.Is.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error by how the search run must react to it.
type Kind int

const (
	// KindSetup errors abort the run before the first iteration.
	KindSetup Kind = iota + 1
	// KindIteration errors are recoverable: the iteration is skipped.
	KindIteration
	// KindIO errors happen at the decode/encode boundaries and are fatal.
	KindIO
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindIteration:
		return "iteration"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Domain sentinels.
var (
	ErrInvalidBlockSize   = errors.New("invalid block size")
	ErrBlockGridMismatch  = errors.New("block grid mismatch")
	ErrEmptyImage         = errors.New("empty image")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrCorruptImage       = errors.New("corrupt image")
	ErrIO                 = errors.New("io error")
	ErrOutOfBounds        = errors.New("edit out of bounds")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrBackendUnavailable = errors.New("evaluation backend unavailable")
	ErrTerminated         = errors.New("search already terminated")
	ErrNotTerminated      = errors.New("search not terminated")
)

// Error is a classified error produced by operation Op.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error wrapping err.
//
// Arguments:
//   - kind: How the caller must react to the error.
//   - op: The operation that failed, e.g. "blocks.NewGrid".
//   - err: The underlying error, usually a sentinel wrapped with context.
//
// Returns:
//   - error: The classified error, or nil when err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Setupf wraps sentinel with a formatted message as a setup error.
func Setupf(op string, sentinel error, format string, args ...any) error {
	return New(KindSetup, op, errors.Wrapf(sentinel, format, args...))
}

// Iterationf wraps sentinel with a formatted message as an iteration error.
func Iterationf(op string, sentinel error, format string, args ...any) error {
	return New(KindIteration, op, errors.Wrapf(sentinel, format, args...))
}

// IOf wraps sentinel with a formatted message as an IO error.
func IOf(op string, sentinel error, format string, args ...any) error {
	return New(KindIO, op, errors.Wrapf(sentinel, format, args...))
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or 0 when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsFatal reports whether err must abort a search run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) != KindIteration
}
