package models

import "errors"

// Error kinds shared by repositories and services. Operations wrap one of
// these with context; callers classify with errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrProcessing           = errors.New("image processing failed")
	ErrStorage              = errors.New("storage error")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidToken         = errors.New("invalid token")
	ErrUnavailable          = errors.New("unavailable")
)
