package types

import "errors"

// Backend lifecycle errors.
var (
	ErrDetached        = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)

// Data source errors.
var (
	// ErrArityMismatch means a template's placeholder count differs from the
	// number of arguments supplied for it.
	ErrArityMismatch = errors.New("placeholder count does not match argument count")
	ErrEmptyTemplate = errors.New("sql template is empty")
	ErrNotFound      = errors.New("object not found")
)
