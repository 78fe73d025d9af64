package domain

import "errors"

// Sentinel errors shared by the identity and catalog services. Handlers map
// them onto HTTP status codes and wire error codes; everything else surfaces
// as an internal error.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrAdminNotFound  = errors.New("admin not found")
	ErrBookNotFound   = errors.New("book not found")
	ErrCopyNotFound   = errors.New("copy not found")

	// ErrUsernameTaken is returned when registering a username that already exists.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrActiveLoans blocks member deactivation while the catalog reports
	// at least one active borrow for the member's user.
	ErrActiveLoans = errors.New("member has active borrowed books")

	// ErrNoCopyAvailable is the allocation conflict: every copy of the book is
	// issued. Distinct from transient failures so clients do not retry it blindly.
	ErrNoCopyAvailable = errors.New("no available copy")

	// ErrCopyNotAvailable is returned when a specific copy is requested but issued.
	ErrCopyNotAvailable = errors.New("copy not available")

	// ErrLoanStatusUnknown means the active-loan check could not be completed
	// (timeout, transport error, non-success status, open circuit). The
	// membership lifecycle treats unknown as "no active loans" and proceeds.
	ErrLoanStatusUnknown = errors.New("loan status unknown")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")

	// ErrUnauthenticated means no usable numeric identity could be resolved for
	// the acting principal; raised locally, before any network call.
	ErrUnauthenticated = errors.New("no authenticated user")

	// ErrInvalidDuration rejects loan durations outside [1, MaxLoanDays].
	ErrInvalidDuration = errors.New("invalid loan duration")

	ErrRateLimited = errors.New("rate limit exceeded")
)

// Loan duration bounds, shared between the catalog service and the borrow flow.
const (
	DefaultLoanDays = 14
	MaxLoanDays     = 28
)

// ErrorCode is the machine-readable code carried in error responses.
type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeBadRequest      ErrorCode = "BAD_REQUEST"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// CodeFor maps a domain error onto its wire code.
func CodeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrAdminNotFound),
		errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrCopyNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrActiveLoans),
		errors.Is(err, ErrNoCopyAvailable),
		errors.Is(err, ErrCopyNotAvailable):
		return CodeConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrInvalidDuration):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}
