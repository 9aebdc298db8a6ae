package restart

import "errors"

var (
	// ErrNoProcesses indicates that a full scan found no process entries at
	// all, which means the procfs root is wrong or not mounted.
	ErrNoProcesses = errors.New("restart: no processes found")

	// ErrBadPID indicates a PID that is not a positive integer.
	ErrBadPID = errors.New("restart: invalid pid")
)
