package users

import "errors"

var (
	// ErrUserExists is returned when attempting to create a user whose
	// username is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned when the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidUsername is returned when the username does not meet naming
	// requirements.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidCredentials is returned when authentication fails. It does
	// not distinguish a missing user from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)
