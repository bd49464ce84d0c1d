// Package exrerr classifies the errors the core packages return into the
// small set of kinds a caller actually needs to branch on: is this a
// stream problem, a malformed file, a caller bug, or a resource refusal.
// It wraps the existing sentinel errors declared throughout exr and
// compression rather than replacing them, so callers that already do
// errors.Is(err, exr.ErrInvalidFile) keep working.
package exrerr

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy an error belongs to.
type Kind int

const (
	// Unknown is the zero Kind, used for errors nobody has classified.
	Unknown Kind = iota

	// IO marks an underlying stream failure: short read/write, seek
	// failure, or any error the io package itself returned.
	IO

	// Corrupt marks bytes that were read successfully but violate the
	// file format: bad magic, a bad size field, a codec decompress
	// failure, or a sanity-cap breach.
	Corrupt

	// Unsupported marks a version flag or attribute the implementation
	// recognizes but refuses to handle.
	Unsupported

	// TypeMismatch marks a framebuffer slice whose pixel type disagrees
	// with its channel, or an attribute looked up as the wrong type.
	TypeMismatch

	// Missing marks a required attribute or part that isn't present.
	Missing

	// ProgrammerError marks API misuse: writing after Close, mutating a
	// header after it's been written, chunk I/O out of range.
	ProgrammerError

	// OutOfResources marks an allocation refused by a per-chunk cap or
	// by the host allocator.
	OutOfResources
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "io"
	case Corrupt:
		return "corrupt"
	case Unsupported:
		return "unsupported"
	case TypeMismatch:
		return "type mismatch"
	case Missing:
		return "missing"
	case ProgrammerError:
		return "programmer error"
	case OutOfResources:
		return "out of resources"
	default:
		return "unknown"
	}
}

// Error pairs an underlying error with its Kind and, where known, the
// file offset the failure was detected at. Offset is -1 when not
// applicable.
type Error struct {
	Kind   Kind
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d: %v", e.Kind, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with kind, preserving it as the Unwrap target so
// errors.Is/errors.As against the original sentinel still succeed. Wrap
// returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Offset: -1, Err: err}
}

// WrapAt is Wrap with a file offset attached, for errors the chunk index
// or header parser detects at a specific byte position.
func WrapAt(kind Kind, offset int64, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Offset: offset, Err: err}
}

// KindOf reports the Kind the given error was tagged with, or Unknown if
// it was never wrapped by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err was tagged with the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Poisons is the shared fatal/non-fatal split from the file-handle
// state machine: Corrupt and OutOfResources errors surface to the
// caller without poisoning the handle; every other kind (IO,
// ProgrammerError, Unknown and the rest) does. It does not distinguish
// header-level from chunk-level Corrupt errors.
func Poisons(kind Kind) bool {
	switch kind {
	case Corrupt, OutOfResources:
		return false
	default:
		return true
	}
}
