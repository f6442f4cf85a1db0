package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique constraint was violated.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure. The same error covers
	// unknown usernames and wrong passwords so responses cannot be used to
	// enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates valid credentials on a disabled account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUnauthenticated indicates no identity could be resolved from the
	// supplied token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the permission requirement was not satisfied.
	ErrForbidden = errors.New("forbidden")
	// ErrDependencyUnavailable indicates the cache or store could not be
	// reached. Fatal for the current operation; never retried here.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
