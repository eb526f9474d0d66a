package store

import "errors"

// Sentinel errors returned by PostgresStore. Handlers match them with
// errors.Is and turn them into apologies.
var (
	ErrNotFound        = errors.New("not found")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrAlreadyReviewed = errors.New("already reviewed")
	ErrBookNotFound    = errors.New("book not found")
	ErrUserNotFound    = errors.New("user not found")
)
