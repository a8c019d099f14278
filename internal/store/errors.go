package store

import "fmt"

// Kind enumerates the error taxonomy shared across the repository, the
// selector, and the router (see the call-routing error handling design).
type Kind string

const (
	KindInvalidInput Kind = "INVALID_INPUT"
	KindNotFound     Kind = "NOT_FOUND"
	KindIllegalState Kind = "ILLEGAL_STATE"
	KindStoreError   Kind = "STORE_ERROR"
)

// Error is the structured failure returned by store and repository
// operations in place of a bare error, so callers can branch on Kind
// without string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFound builds a NOT_FOUND failure for op.
func NotFound(op string) *Error { return newErr(KindNotFound, op, nil) }

// InvalidInput builds an INVALID_INPUT failure for op.
func InvalidInput(op string, err error) *Error { return newErr(KindInvalidInput, op, err) }

// IllegalState builds an ILLEGAL_STATE failure for op.
func IllegalState(op string, err error) *Error { return newErr(KindIllegalState, op, err) }

// StoreFailure wraps a lower-level store error as STORE_ERROR.
func StoreFailure(op string, err error) *Error { return newErr(KindStoreError, op, err) }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind == kind
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
