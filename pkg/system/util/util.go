package util

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrBadPID is returned for an argument that is not a positive decimal PID.
var ErrBadPID = errors.New("invalid pid")

// ParsePIDs converts command-line arguments to PIDs, keeping their order and
// duplicates. Every argument must be a positive decimal integer; signs,
// blanks and trailing garbage are rejected.
func ParsePIDs(args []string) ([]int, error) {
	pids := make([]int, 0, len(args))
	for _, a := range args {
		pid, err := parsePID(a)
		if err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func parsePID(s string) (int, error) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, fmt.Errorf("%w: %q", ErrBadPID, s)
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadPID, s)
	}
	return int(n), nil
}
