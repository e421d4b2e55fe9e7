package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrInvalidQuery is returned when the keyword input is empty or whitespace only
	ErrInvalidQuery = errors.New("at least one keyword is required")

	// ErrFetchFailed is returned when the directory page could not be retrieved
	ErrFetchFailed = errors.New("directory fetch failed")

	// ErrOriginStatus is returned when the origin answers with a non-2xx status
	ErrOriginStatus = errors.New("unexpected status from origin")
)

// FetchError is the terminal error of a fetch after all attempts were used.
// It carries the last underlying cause.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetchFailed) hold for every FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Timeout reports whether the last cause was timeout-class.
func (e *FetchError) Timeout() bool {
	return IsTimeout(e.Err)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
