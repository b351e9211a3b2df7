package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates a caller-correctable input problem.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientStock occurs when a removal would drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or invalid token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the action is not allowed for the target.
	ErrForbidden = errors.New("forbidden")
)

var domainErrors = []error{
	ErrNotFound,
	ErrInvalidArgument,
	ErrInsufficientStock,
	ErrConflict,
	ErrInvalidCredentials,
	ErrUnauthorized,
	ErrForbidden,
}

// IsDomainError reports whether err wraps one of the sentinel errors above.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserSafeMessage returns the message that may be shown to API clients.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsDomainError(err):
		return err.Error()
	default:
		return "internal error"
	}
}
