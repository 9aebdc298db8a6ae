//go:build linux

package restart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ja7ad/procs-need-restart/pkg/system/proc"
)

// Scanner runs a Classifier over a set of processes and writes findings to
// a Sink.
type Scanner struct {
	fs   proc.FS
	cls  *Classifier
	jobs int

	mu   sync.Mutex // serializes sink and summary in parallel scans
	sink Sink
}

func NewScanner(pfs proc.FS, opts Options, sink Sink) *Scanner {
	return &Scanner{
		fs:   pfs,
		cls:  NewClassifier(pfs, opts),
		jobs: opts.Jobs,
		sink: sink,
	}
}

// ScanPIDs classifies the given processes, kernel threads included. PIDs
// must be positive.
func (s *Scanner) ScanPIDs(ctx context.Context, pids []int) (Summary, error) {
	for _, pid := range pids {
		if pid <= 0 {
			return Summary{}, fmt.Errorf("%w: %d", ErrBadPID, pid)
		}
	}
	return s.scan(ctx, pids, false)
}

// ScanAll classifies every process in the tree except kernel threads.
func (s *Scanner) ScanAll(ctx context.Context) (Summary, error) {
	pids, err := s.fs.PIDs()
	if err != nil {
		return Summary{}, err
	}
	if len(pids) == 0 {
		return Summary{}, fmt.Errorf("%w in %s", ErrNoProcesses, s.fs.Root())
	}
	return s.scan(ctx, pids, true)
}

func (s *Scanner) scan(ctx context.Context, pids []int, skipKernel bool) (Summary, error) {
	var sum Summary

	if s.jobs < 2 {
		for _, pid := range pids {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			if skipKernel && s.fs.IsKernel(pid) {
				sum.Skipped++
				continue
			}
			s.record(&sum, s.cls.Classify(pid, s.sink))
		}
		return sum, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)
	for _, pid := range pids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if skipKernel && s.fs.IsKernel(pid) {
				s.mu.Lock()
				sum.Skipped++
				s.mu.Unlock()
				return nil
			}

			buf := &bufferSink{}
			res := s.cls.Classify(pid, buf)

			s.mu.Lock()
			defer s.mu.Unlock()
			if err := buf.flush(s.sink); err != nil && res.Err == nil {
				res.Outcome, res.Err = Failed, fmt.Errorf("report: %w", err)
			}
			s.record(&sum, res)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return sum, err
}

func (s *Scanner) record(sum *Summary, res Result) {
	if res.Outcome == Failed {
		slog.Error("cannot inspect process", "pid", res.PID, "err", res.Err)
	}
	sum.add(res)
}
