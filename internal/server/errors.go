package server

import "errors"

// Inspector errors
var (
	ErrAlreadyRunning = errors.New("inspector is already running")
	ErrNotRunning     = errors.New("inspector is not running")
	ErrListenerFailed = errors.New("failed to create listener")
)
