package hooks

import "errors"

var (
	ErrNoPoint          = errors.New("registration has no extension point")
	ErrNoHandler        = errors.New("registration has no handler for its phase")
	ErrUnknownPhase     = errors.New("unknown phase")
	ErrVetoTaken        = errors.New("extension point already has a vetoing before handler")
	ErrAlreadyInstalled = errors.New("extension point already installed")
	ErrNotInstalled     = errors.New("extension point not installed")
	ErrHandlerPanic     = errors.New("handler panicked")
)
