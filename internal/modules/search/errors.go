package search

import "errors"

var (
	ErrStopped        = errors.New("search coordinator stopped")
	ErrAlreadyRunning = errors.New("search coordinator already running")
	ErrResultNotFound = errors.New("result not found")
	ErrNoLocation     = errors.New("no location available")
)
