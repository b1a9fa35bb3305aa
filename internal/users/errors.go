package users

import (
	"github.com/hdu-care/hdu-service/internal/apperr"
)

var (
	ErrUserNotFound       = apperr.NotFound("user not found")
	ErrUserExists         = apperr.Conflict("username or email already registered")
	ErrInvalidCredentials = apperr.Unauthorized("Invalid credentials")
	ErrNotPending         = apperr.Conflict("user is not pending approval")
)

// AccountStatusError is returned by Login for accounts that are not
// approved yet or were rejected.
type AccountStatusError struct {
	Status string
}

func (e *AccountStatusError) Error() string {
	if e.Status == StatusRejected {
		return "Your account registration was rejected. Please contact an administrator for more information."
	}
	return "Your account is pending approval. Please wait for an administrator to approve your registration."
}

func (e *AccountStatusError) Unwrap() error { return apperr.ErrForbidden }

// Code is the machine-readable error of the 403 body.
func (e *AccountStatusError) Code() string {
	return "account_" + e.Status
}
