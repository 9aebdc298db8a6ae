package filecmp

import "errors"

// ErrInconclusive indicates that one of the files could not be opened or
// stat'ed, so nothing is known about their contents. The underlying
// *fs.PathError is still reachable with errors.Is / errors.As.
var ErrInconclusive = errors.New("filecmp: inconclusive")

type inconclusiveError struct {
	err error
}

func (e *inconclusiveError) Error() string {
	return ErrInconclusive.Error() + ": " + e.err.Error()
}

func (e *inconclusiveError) Unwrap() []error {
	return []error{ErrInconclusive, e.err}
}

func inconclusive(err error) error {
	return &inconclusiveError{err: err}
}
