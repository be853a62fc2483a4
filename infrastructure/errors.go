package infrastructure

import "errors"

// Kind buckets every error the realtime surface can return to a client.
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindNotFound        Kind = "NOT_FOUND_OR_UNAUTHORIZED"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindConflict        Kind = "CONFLICT"
	KindUpstream        Kind = "UPSTREAM_FAILURE"
)

var (
	ErrMissingToken = errors.New("missing access token")
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token has expired")

	ErrUserNotFound = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrSelfTarget   = errors.New("cannot initiate conversation with yourself")
	ErrBlocked      = errors.New("conversation is blocked")

	// Absent record and non-participant caller are deliberately the same
	// error so existence never leaks to outsiders.
	ErrNotFoundOrUnauthorized = errors.New("not found or unauthorized")

	ErrDuplicate      = errors.New("record already exists")
	ErrInternalServer = errors.New("internal server error")
)

// KindOf maps an error to its taxonomy bucket. Unknown errors count as
// upstream failures so a broken dependency never leaks internals to a client.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired):
		return KindUnauthenticated
	case errors.Is(err, ErrSelfTarget),
		errors.Is(err, ErrBlocked),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrNotFoundOrUnauthorized):
		return KindNotFound
	case errors.Is(err, ErrDuplicate):
		return KindConflict
	default:
		return KindUpstream
	}
}
