package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that the record (or its content) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExpired signals that the record's expiry has passed; it was deleted on this read.
	ErrExpired = errors.New("expired")
	// ErrLimitReached signals that maxDownloads has been used up.
	ErrLimitReached = errors.New("download limit reached")
	// ErrUpstreamUnavailable signals a failed subscription fetch. The download
	// allowance for that access has already been consumed.
	ErrUpstreamUnavailable = errors.New("failed to fetch subscription")
	// ErrSlugTaken signals a custom slug collision with a live record.
	ErrSlugTaken = errors.New("custom slug already exists")
	// ErrInfected signals that the virus scanner flagged an upload.
	ErrInfected = errors.New("file rejected by virus scan")
	// ErrUnauthorized signals a wrong or missing admin credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError is a client mistake in an upload request.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AsValidation returns the ValidationError in err's chain, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
