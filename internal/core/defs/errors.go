package defs

import "errors"

var (
	ErrEmptyName       = errors.New("definition has no name")
	ErrDuplicateName   = errors.New("definition already registered")
	ErrNotRegistered   = errors.New("definition not registered")
	ErrUnresolved      = errors.New("unresolved reference")
	ErrAlreadyAssigned = errors.New("short id already assigned")
	ErrPoolExhausted   = errors.New("short id pool exhausted")
	ErrIDCollision     = errors.New("short id collision")
)
