// Package coreerr defines the error taxonomy shared by every title-install
// component: streaming sinks never panic on bad input, they wrap it in a
// CoreError and let the caller's end_* operation surface it.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies a CoreError the way the service layer converts it into a
// command result code.
type Kind int

const (
	KindNotFound Kind = iota
	KindIOError
	KindInvalidFormat
	KindHashMismatch
	KindUnsupportedCrypto
	KindNotAuthorized
	KindInvalidState
	KindInvalidArgument
	KindAlreadyDone
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindIOError:
		return "io-error"
	case KindInvalidFormat:
		return "invalid-format"
	case KindHashMismatch:
		return "hash-mismatch"
	case KindUnsupportedCrypto:
		return "unsupported-crypto"
	case KindNotAuthorized:
		return "not-authorized"
	case KindInvalidState:
		return "invalid-state"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindAlreadyDone:
		return "already-done"
	default:
		return "unknown"
	}
}

// CoreError is the typed error every component in this module returns. Op
// names the failing operation ("ticket.Load", "ncch.Write", ...).
type CoreError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *CoreError) Unwrap() error { return e.Err }

// New constructs a CoreError wrapping err (which may be nil).
func New(kind Kind, op string, err error) *CoreError {
	return &CoreError{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a CoreError of the given kind.
func Is(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
