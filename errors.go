package spatiodb

import "fmt"

// Kind identifies the class of failure an Error represents, grouped
// the way callers actually need to branch on them: validation versus
// I/O versus corruption versus lifecycle misuse.
type Kind int

const (
	// KindInvalidKey marks a key that is empty, too long, or contains
	// a reserved byte.
	KindInvalidKey Kind = iota + 1
	// KindInvalidValue marks a value that exceeds MaxValueLen.
	KindInvalidValue
	// KindInvalidPoint marks a latitude/longitude outside its valid range.
	KindInvalidPoint
	// KindInvalidBounds marks a bounding box with inverted or
	// out-of-range corners.
	KindInvalidBounds
	// KindInvalidTrajectory marks a sample sequence that is empty or
	// not non-decreasing by timestamp.
	KindInvalidTrajectory
	// KindInvalidConfig marks a Config value that fails validation at Open.
	KindInvalidConfig
	// KindIoError wraps an OS-level read/write/fsync/rename failure.
	KindIoError
	// KindCorrupt marks an AOL that failed to open because of a bad
	// magic, bad version, or unrecoverable residual bytes.
	KindCorrupt
	// KindAlreadyOpen marks an attempt to open an AOL path that is
	// already held open by this process.
	KindAlreadyOpen
	// KindClosed marks an operation attempted after Close.
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidKey:
		return "invalid_key"
	case KindInvalidValue:
		return "invalid_value"
	case KindInvalidPoint:
		return "invalid_point"
	case KindInvalidBounds:
		return "invalid_bounds"
	case KindInvalidTrajectory:
		return "invalid_trajectory"
	case KindInvalidConfig:
		return "invalid_config"
	case KindIoError:
		return "io_error"
	case KindCorrupt:
		return "corrupt"
	case KindAlreadyOpen:
		return "already_open"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned by every engine operation.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Offset  int64 // byte offset of the first unreadable AOL frame, for KindCorrupt
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" && e.Cause != nil {
		return fmt.Sprintf("spatiodb: %s (%s): %s: %v", e.Kind, e.Field, e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("spatiodb: %s (%s): %s", e.Kind, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("spatiodb: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("spatiodb: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind and an
// empty Message, so a kind-only value such as &Error{Kind: KindCorrupt}
// matches any error of that kind. A target with a Message, such as
// ErrClosed, matches only itself (errors.Is compares identity first).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind && te.Message == ""
}

func newError(kind Kind, field, message string, cause error) *Error {
	return &Error{Kind: kind, Field: field, Message: message, Cause: cause}
}

func invalidKeyErr(field, message string) *Error {
	return newError(KindInvalidKey, field, message, nil)
}

func invalidValueErr(field, message string) *Error {
	return newError(KindInvalidValue, field, message, nil)
}

func invalidPointErr(field, message string) *Error {
	return newError(KindInvalidPoint, field, message, nil)
}

func invalidBoundsErr(field, message string) *Error {
	return newError(KindInvalidBounds, field, message, nil)
}

func invalidTrajectoryErr(field, message string) *Error {
	return newError(KindInvalidTrajectory, field, message, nil)
}

func invalidConfigErr(field, message string) *Error {
	return newError(KindInvalidConfig, field, message, nil)
}

func ioErr(message string, cause error) *Error {
	return newError(KindIoError, "", message, cause)
}

func corruptErr(message string, offset int64, cause error) *Error {
	e := newError(KindCorrupt, "", message, cause)
	e.Offset = offset
	return e
}

func alreadyOpenErr(path string) *Error {
	return newError(KindAlreadyOpen, "path", fmt.Sprintf("AOL path %q is already open", path), nil)
}

// ErrClosed is returned by operations attempted after Close. Compare
// with errors.Is(err, spatiodb.ErrClosed).
var ErrClosed = newError(KindClosed, "", "engine is closed", nil)

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if se, ok := err.(*Error); ok {
		e = se
	} else {
		return false
	}
	return e.Kind == kind
}
