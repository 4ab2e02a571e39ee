// Package berrors defines the closed set of error kinds the beet core
// distinguishes, mirroring the teacher's BLTErr enum but extended to the
// full kind list a pager/tree/index/iterator stack needs.
package berrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed set of error kinds the core distinguishes.
type Kind int

const (
	OK Kind = iota
	NoMemory
	InvalidArgument
	KeyNotFound
	KeyNotHidden
	NoResource // cache full, retry
	BadFile
	NoFile
	NoTree
	NoNode
	NoPage
	BadPage
	NoRoot
	NoIter
	NoSub
	NoState
	BadState
	BadSize
	TooBig
	NoMagic
	NoVersion
	UnknownVersion
	BadConfig
	UnknownType
	NotSupported
	NoSymbol
	EOF
	OneWay
	OSError
)

var names = map[Kind]string{
	OK:              "OK",
	NoMemory:        "NO_MEMORY",
	InvalidArgument: "INVALID_ARGUMENT",
	KeyNotFound:     "KEY_NOT_FOUND",
	KeyNotHidden:    "KEY_NOT_HIDDEN",
	NoResource:      "NO_RESOURCE",
	BadFile:         "BAD_FILE",
	NoFile:          "NO_FILE",
	NoTree:          "NO_TREE",
	NoNode:          "NO_NODE",
	NoPage:          "NO_PAGE",
	BadPage:         "BAD_PAGE",
	NoRoot:          "NO_ROOT",
	NoIter:          "NO_ITER",
	NoSub:           "NO_SUB",
	NoState:         "NO_STATE",
	BadState:        "BAD_STATE",
	BadSize:         "BAD_SIZE",
	TooBig:          "TOO_BIG",
	NoMagic:         "NO_MAGIC",
	NoVersion:       "NO_VERSION",
	UnknownVersion:  "UNKNOWN_VERSION",
	BadConfig:       "BAD_CONFIG",
	UnknownType:     "UNKNOWN_TYPE",
	NotSupported:    "NOT_SUPPORTED",
	NoSymbol:        "NO_SYMBOL",
	EOF:             "EOF",
	OneWay:          "ONE_WAY",
	OSError:         "OS_ERROR",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// BeetError is the error type returned by every exported beet operation.
// It carries a Kind the caller can switch on, an optional message, and an
// optional wrapped cause (typically an OS error from open/read/write/seek).
type BeetError struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *BeetError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("beet: %s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	if e.Msg != "" {
		return fmt.Sprintf("beet: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("beet: %s", e.Kind)
}

func (e *BeetError) Unwrap() error { return e.cause }

// New builds a BeetError with no wrapped cause.
func New(kind Kind, msg string) *BeetError {
	return &BeetError{Kind: kind, Msg: msg}
}

// Newf builds a BeetError with a formatted message.
func Newf(kind Kind, format string, args ...any) *BeetError {
	return &BeetError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches an OS-level cause (seek/open/close/read/write/flush/mkdir/
// remove) to an OSError-kind BeetError, preserving the cause chain via
// github.com/pkg/errors so callers can still recover the original error.
func Wrap(cause error, msg string) *BeetError {
	if cause == nil {
		return nil
	}
	return &BeetError{Kind: OSError, Msg: msg, cause: errors.Wrap(cause, msg)}
}

// Is reports whether err is a BeetError of the given kind.
func Is(err error, kind Kind) bool {
	var be *BeetError
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
