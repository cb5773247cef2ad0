/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
// A zero Status defaults to HTTP 200 with the business code carrying the outcome.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Input Validation Errors
	ErrPasswordMismatch: {Code: ErrPasswordMismatch, Message: "Passwords do not match!"},
	ErrUsernameTooShort: {Code: ErrUsernameTooShort, Message: "Username must be at least 3 characters!"},
	ErrEmptyMessage:     {Code: ErrEmptyMessage, Message: "Message cannot be empty."},
	ErrMessageTooLong:   {Code: ErrMessageTooLong, Message: "Message is too long."},

	// 3xxx: User, Session, and Credential Errors
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "User not found!"},
	ErrUsernameTaken:      {Code: ErrUsernameTaken, Message: "Username already exists!"},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid password!"},
	ErrNoActiveSession:    {Code: ErrNoActiveSession, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrSessionExpired:     {Code: ErrSessionExpired, Message: "Your session has expired. Please sign in again.", Status: http.StatusUnauthorized},

	// 5xxx: Remote Store and Internal Errors
	ErrRemoteStore: {Code: ErrRemoteStore, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrUnknown:     {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
