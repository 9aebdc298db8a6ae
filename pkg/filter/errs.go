package filter

import "errors"

var (
	// ErrBadPattern indicates a glob that cannot be compiled.
	ErrBadPattern = errors.New("filter: bad pattern")

	// ErrBadSyntax indicates an unknown glob syntax name.
	ErrBadSyntax = errors.New("filter: unknown glob syntax")
)
