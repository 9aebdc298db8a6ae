package restart

import "github.com/ja7ad/procs-need-restart/pkg/filter"

// Options controls a scan. It is passed by value and never modified, so one
// Options can serve many concurrent classifications.
type Options struct {
	// Verbose reports every stale path instead of the PID once.
	Verbose bool

	// IgnorePermission treats permission errors as "not stale". Set it when
	// running without root, where most other processes are off limits.
	IgnorePermission bool

	// Rules selects which paths are compared. Empty selects all.
	Rules filter.Rules

	// StagingSuffixes are stripped from deleted names before comparison.
	// nil means no stripping; callers usually pass
	// proc.DefaultStagingSuffixes.
	StagingSuffixes []string

	// Jobs is the number of processes classified at once. Values below 2
	// scan sequentially.
	Jobs int
}
