package policy

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a policy seeding failure.
type ErrorKind int

const (
	// KindNotFound means no file exists at the configured path.
	KindNotFound ErrorKind = iota + 1
	// KindUnsupportedFormat means the file does not carry a .json extension.
	KindUnsupportedFormat
	// KindOpenFailure means the file exists but could not be opened.
	KindOpenFailure
	// KindReadFailure means the file could not be read as text.
	KindReadFailure
	// KindDecodeFailure means the contents are not a JSON array of policies.
	KindDecodeFailure
	// KindStoreApplyFailure means the policy store rejected the update.
	KindStoreApplyFailure
)

// String returns the kind name used in logs.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindOpenFailure:
		return "open_failure"
	case KindReadFailure:
		return "read_failure"
	case KindDecodeFailure:
		return "decode_failure"
	case KindStoreApplyFailure:
		return "store_apply_failure"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrOpenFailure       = &Error{Kind: KindOpenFailure}
	ErrReadFailure       = &Error{Kind: KindReadFailure}
	ErrDecodeFailure     = &Error{Kind: KindDecodeFailure}
	ErrStoreApplyFailure = &Error{Kind: KindStoreApplyFailure}
)

// Error is a classified policy seeding failure.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Path is the policy file involved, if any.
	Path string

	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
