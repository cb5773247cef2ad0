/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
within the server and in responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained trailing data after valid JSON.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Input Validation Errors
const (
	// ErrPasswordMismatch indicates that password and confirmation did not match at sign-up.
	ErrPasswordMismatch = 2001

	// ErrUsernameTooShort indicates that the requested username is below the minimum length.
	ErrUsernameTooShort = 2002

	// ErrEmptyMessage indicates that a message was empty after trimming whitespace.
	ErrEmptyMessage = 2101

	// ErrMessageTooLong indicates that a message exceeded the maximum length.
	ErrMessageTooLong = 2102
)

// 3xxx: User, Session, and Credential Errors
const (
	// ErrUserNotFound indicates that no user record exists for the given username.
	ErrUserNotFound = 3001

	// ErrUsernameTaken indicates that the requested username already exists.
	ErrUsernameTaken = 3002

	// ErrInvalidCredentials indicates that the supplied password did not match the stored one.
	ErrInvalidCredentials = 3003

	// ErrNoActiveSession indicates that an operation requiring a session was called without one.
	ErrNoActiveSession = 3004

	// ErrSessionExpired indicates that a presented session token is invalid or expired.
	ErrSessionExpired = 3005
)

// 5xxx: Remote Store and Internal Errors
const (
	// ErrRemoteStore indicates a failure talking to the backing store. The cause is opaque to clients.
	ErrRemoteStore = 5001

	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)
