package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeIncorrectPassword  = "incorrect_password"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeAuthRequired       = "auth_required"
	ErrCodeRoomNotFound       = "room_not_found"
	ErrCodeRoomClosed         = "room_closed"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeRateLimited        = "rate_limited"
)

var (
	ErrIncorrectPassword  = coreError(ErrCodeIncorrectPassword, "password is incorrect")
	ErrInvalidCredentials = coreError(ErrCodeInvalidCredentials, "invalid username or password")
	ErrAuthRequired       = coreError(ErrCodeAuthRequired, "login required")
	ErrRoomNotFound       = coreError(ErrCodeRoomNotFound, "room not found")
	ErrRoomClosed         = coreError(ErrCodeRoomClosed, "room is closed")
	ErrBadRequest         = coreError(ErrCodeBadRequest, "bad request")
	ErrNotJoined          = coreError(ErrCodeBadRequest, "join a room first")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// BadRequest builds a bad_request error with a specific message.
func BadRequest(msg string) *CoreError {
	return coreError(ErrCodeBadRequest, msg)
}

// AsCoreError extracts a CoreError from err. Anything else is reported as
// a bad request so internals do not leak to clients.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	return ErrBadRequest
}
