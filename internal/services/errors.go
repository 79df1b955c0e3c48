package services

import "errors"

// Error taxonomy shared by every operation. Handlers map these to HTTP statuses.
var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ErrSessionNotFound and ErrSongNotFound both match ErrNotFound under errors.Is.
var (
	ErrSessionNotFound = notFound("session not found")
	ErrSongNotFound    = notFound("song not found")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
