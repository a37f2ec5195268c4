package config

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrInvalidRecord is returned when an untyped record cannot be parsed.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidTable is returned when a tables file is structurally wrong.
	ErrInvalidTable = errors.New("invalid tax table")
	// ErrInvalidSettings is returned when settings fail validation.
	ErrInvalidSettings = errors.New("invalid settings")
)
