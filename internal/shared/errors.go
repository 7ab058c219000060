package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeactivated is returned when an inactive account tries to sign in.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrUnauthenticated indicates the caller has no valid session token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidOrExpiredToken indicates a bad signature, malformed token or past expiry.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrForbidden is matched by every *ForbiddenError.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a unique value is already taken.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrReservedRole is returned when deleting or renaming a system role.
	ErrReservedRole = errors.New("reserved role")
	// ErrInvalidResetCode indicates the reset code does not match.
	ErrInvalidResetCode = errors.New("invalid reset code")
	// ErrResetCodeExpired indicates the reset code lifetime has elapsed.
	ErrResetCodeExpired = errors.New("reset code expired")
)

// ValidationError carries per-field validation messages.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ForbiddenError reports an authenticated caller lacking a claim.
type ForbiddenError struct {
	Permission string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access denied for permission %q", e.Permission)
}

// Is lets errors.Is(err, ErrForbidden) match.
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// UserSafeMessage returns a message that can be shown to API clients.
func UserSafeMessage(err error) string {
	var verr *ValidationError
	var ferr *ForbiddenError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &ferr):
		return ferr.Error()
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidOrExpiredToken):
		return "your session has expired, please sign in again"
	case errors.Is(err, ErrAccountDeactivated):
		return "inactive user, please contact an administrator"
	case errors.Is(err, ErrInvalidCredentials):
		return "password does not match the informed user"
	case errors.Is(err, ErrNotFound):
		return "record not found"
	case errors.Is(err, ErrDuplicate):
		return "record already exists"
	case errors.Is(err, ErrReservedRole):
		return "system roles cannot be removed or renamed"
	case errors.Is(err, ErrInvalidResetCode):
		return "invalid reset code"
	case errors.Is(err, ErrResetCodeExpired):
		return "the informed reset code has expired"
	default:
		return "internal server error"
	}
}
