package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a request without a valid session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the caller lacks the required capability.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation, such as a taken email.
	ErrConflict = errors.New("already exists")
)
