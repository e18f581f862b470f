// Package apperr classifies failures of the memory tools so callers can
// decide whether to report a sentinel, reject input, or abort.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the class of a failure.
type Kind int

const (
	// KindUnknown is any error that was not classified.
	KindUnknown Kind = iota
	// KindNotFound covers missing documents, logs, and entry ids.
	KindNotFound
	// KindValidation covers input rejected before any write.
	KindValidation
	// KindStorageUnavailable covers an inaccessible store file.
	KindStorageUnavailable
	// KindExternalTimeout covers collaborators (browser, sandbox) that ran out of time.
	KindExternalTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindStorageUnavailable:
		return "storage unavailable"
	case KindExternalTimeout:
		return "external timeout"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrExternalTimeout    = errors.New("external timeout")
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == ErrNotFound
	case KindValidation:
		return target == ErrValidation
	case KindStorageUnavailable:
		return target == ErrStorageUnavailable
	case KindExternalTimeout:
		return target == ErrExternalTimeout
	}
	return false
}

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation builds a KindValidation error.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// StorageUnavailable wraps err as a KindStorageUnavailable error.
func StorageUnavailable(op string, err error) error {
	return &Error{Kind: KindStorageUnavailable, Op: op, Err: err}
}

// ExternalTimeout wraps err as a KindExternalTimeout error.
func ExternalTimeout(op string, err error) error {
	return &Error{Kind: KindExternalTimeout, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
