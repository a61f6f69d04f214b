package domain

import "errors"

var (
	// ErrNotFound indicates a referenced board, list or card does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller is neither owner nor member of the
	// board the operation touches.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidArgument indicates a malformed request, most notably a
	// reorder whose id set does not exactly match the parent's members.
	ErrInvalidArgument = errors.New("invalid argument")
)
