package proc

import "errors"

var (
	// ErrVanished indicates that the process exited between enumeration and
	// inspection. It is never a failure.
	ErrVanished = errors.New("proc: process vanished")

	// ErrNoExe indicates that /proc/<pid>/exe exists but has no target, which
	// is the case for kernel threads (and zombies).
	ErrNoExe = errors.New("proc: no executable")

	// ErrPathTooLong indicates that a link target or a path derived from it
	// does not fit in PathMax bytes.
	ErrPathTooLong = errors.New("proc: path too long")
)
