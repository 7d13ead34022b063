// Package erruser provides errors whose Error() returns only a user-facing
// message; the cause is available via Unwrap() for Details or logs.
//
// Each error may also carry a Kind from the diff engine's taxonomy
// (ErrRefNotFound, ErrRepository, ...). errors.Is matches the kind, so callers
// can branch on the category without parsing messages:
//
//	if errors.Is(err, erruser.ErrRefNotFound) { ... }
package erruser

import "errors"

// Kinds of failure surfaced by the diff engine. Absent and binary content are
// not errors and have no kind.
var (
	// ErrRefNotFound means a ref string did not resolve to a commit.
	ErrRefNotFound = errors.New("ref not found")
	// ErrRepository means the underlying object store failed (corruption, I/O).
	ErrRepository = errors.New("repository error")
	// ErrUTF8Decode means non-UTF-8 bytes reached an API that requires text.
	ErrUTF8Decode = errors.New("invalid UTF-8 text")
	// ErrCacheComputationFailed wraps any failure of a shared cached computation.
	ErrCacheComputationFailed = errors.New("cache computation failed")
	// ErrInvalidPath means a path is empty or lies outside the working directory.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidInput means a required argument is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// Err holds a user-facing message, an optional kind and an optional cause.
// Error() returns only Msg so the primary line never contains command names
// or exit codes; use Unwrap() for technical detail.
type Err struct {
	Msg  string
	Kind error
	Err  error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying error for Details or logging.
// Handles nil receiver (method call on nil *Err is valid in Go).
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the kind of e.
func (e *Err) Is(target error) bool {
	return e != nil && e.Kind != nil && target == e.Kind
}

// New returns an error with the given user-facing message. If err is non-nil,
// it is wrapped and available via Unwrap() so callers can print "Details: %v".
// If err is nil, returns a simple error with just msg (no Unwrap).
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Msg: msg, Err: err}
}

// Wrap returns an error of the given kind with a user-facing message and an
// optional cause. Unlike New, the result is always an *Err so errors.Is can
// match kind.
func Wrap(kind error, msg string, err error) error {
	return &Err{Msg: msg, Kind: kind, Err: err}
}

// KindOf returns the first taxonomy kind found in err's chain, or nil.
// A cache failure reports ErrCacheComputationFailed even when it wraps
// another kind.
func KindOf(err error) error {
	for _, k := range []error{
		ErrCacheComputationFailed,
		ErrRefNotFound,
		ErrRepository,
		ErrUTF8Decode,
		ErrInvalidPath,
		ErrInvalidInput,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
