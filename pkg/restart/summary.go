package restart

import "fmt"

// Outcome is the verdict for one process.
type Outcome int

const (
	// NotStale: nothing the process runs was replaced, or we may not look.
	NotStale Outcome = iota
	// Stale: the executable or a mapped file differs from what is on disk.
	Stale
	// Failed: the process could not be inspected.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NotStale:
		return "not-stale"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is what Classify found for one process.
type Result struct {
	PID     int
	Outcome Outcome
	// Paths lists stale files in report order. Only filled in verbose mode.
	Paths []string
	// Err is set when Outcome is Failed.
	Err error
}

// Summary counts what a scan saw.
type Summary struct {
	// Scanned is the number of processes classified.
	Scanned int
	// Skipped is the number of kernel threads left out of a full scan.
	Skipped int
	Stale   int
	Failed  int
}

// OK reports whether every process could be inspected.
func (s Summary) OK() bool { return s.Failed == 0 }

func (s *Summary) add(res Result) {
	s.Scanned++
	switch res.Outcome {
	case Stale:
		s.Stale++
	case Failed:
		s.Failed++
	}
}
