package domain

import "errors"

var (
	// ErrValidation marks a missing, empty or malformed input field.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownAssignee marks an assignee id that matches no user.
	ErrUnknownAssignee = errors.New("assigned user does not exist")

	ErrTaskNotFound    = errors.New("task not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrUserNotFound    = errors.New("user not found")

	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")

	// ErrIdempotencyConflict marks an Idempotency-Key bound to a task that is
	// not visible yet, or no longer exists.
	ErrIdempotencyConflict = errors.New("idempotency key is bound to an unavailable task")
)
