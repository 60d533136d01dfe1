package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidArgument indicates malformed input or a token collision.
	ErrInvalidArgument = errors.New("repository: invalid argument")
)
