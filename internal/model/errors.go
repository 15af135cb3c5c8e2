package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrUnauthenticated   = errors.New("not signed in")
)

// Result is the outcome of a user action as shown to the user.
type Result struct {
	OK      bool
	Message string
}

// Outcome converts an operation error into a Result. A nil error is a success
// with the given message.
func Outcome(err error, success string) Result {
	if err == nil {
		return Result{OK: true, Message: success}
	}
	return Result{OK: false, Message: err.Error()}
}
