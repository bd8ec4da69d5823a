package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. Unknown email and wrong
	// password both map here so the caller cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail indicates a registration conflict on email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername indicates a registration conflict on username.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrDuplicateKey indicates a unique constraint violation that does not
	// map to a more specific conflict.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrFederatedLookup indicates the provider profile could not be
	// obtained or was malformed.
	ErrFederatedLookup = errors.New("federated identity lookup failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
