package fault

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Kind is the closed error taxonomy every store and gateway response is
// mapped into at the boundary where it is received. Vendor-specific error
// codes never travel past the repository layer.
type Kind int

const (
	// KindTransient covers network trouble and temporary unavailability;
	// callers may retry with backoff.
	KindTransient Kind = iota
	// KindPermission is terminal for the session: retrying cannot succeed
	// without a rules or config change on the server side.
	KindPermission
	// KindNotFound is not an error for the lifecycle machine; a missing
	// profile document triggers creation.
	KindNotFound
	// KindValidation is user-input level and never reaches the lifecycle
	// machine; handlers surface it inline.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err. Unclassified errors are treated as
// transient, the safe default for a store boundary: worst case we retry a
// few times before surfacing.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// MySQL error numbers that mean "your credentials or grants are wrong",
// as opposed to "the database is having a moment".
const (
	mysqlErrAccessDenied   = 1044
	mysqlErrBadCredentials = 1045
	mysqlErrTableDenied    = 1142
)

// ClassifyMySQL maps a MySQL driver error onto the taxonomy. Anything not
// recognized as a permission problem counts as transient.
func ClassifyMySQL(err error) *Error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrAccessDenied, mysqlErrBadCredentials, mysqlErrTableDenied:
			return New(KindPermission, err)
		}
	}
	return New(KindTransient, err)
}
