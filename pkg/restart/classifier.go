//go:build linux

package restart

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/ja7ad/procs-need-restart/pkg/filecmp"
	"github.com/ja7ad/procs-need-restart/pkg/system/proc"
)

// Classifier decides whether single processes need a restart.
type Classifier struct {
	fs   proc.FS
	opts Options
}

func NewClassifier(pfs proc.FS, opts Options) *Classifier {
	return &Classifier{fs: pfs, opts: opts}
}

// Classify checks the executable and then the mapped files of pid.
// Findings go to sink as they are made. In non-verbose mode the PID is
// reported once and the maps are not read if the executable is already
// stale.
//
// A process that vanishes, or that we may not inspect while
// IgnorePermission is set, is NotStale.
func (c *Classifier) Classify(pid int, sink Sink) Result {
	r := &report{pid: pid, verbose: c.opts.Verbose, sink: sink}

	stale, err := c.checkExe(pid, r)
	if err == nil && (!stale || c.opts.Verbose) {
		err = c.checkMaps(pid, r)
	}

	res := Result{PID: pid, Paths: r.paths}
	switch {
	case err != nil:
		res.Outcome, res.Err = Failed, err
	case r.stale:
		res.Outcome = Stale
	}
	return res
}

// report forwards findings to the sink: once per process, or in verbose
// mode once per distinct path. A replaced executable also shows up in its
// own maps and is not reported twice.
type report struct {
	pid     int
	verbose bool
	sink    Sink

	stale bool
	paths []string
}

func (r *report) add(path string) error {
	if r.verbose {
		if slices.Contains(r.paths, path) {
			return nil
		}
		r.stale = true
		r.paths = append(r.paths, path)
		return r.sink.Report(Finding{PID: r.pid, Path: path})
	}
	if r.stale {
		return nil
	}
	r.stale = true
	return r.sink.Report(Finding{PID: r.pid})
}

func (c *Classifier) checkExe(pid int, r *report) (bool, error) {
	target, err := c.fs.ExeLink(pid)
	if err != nil {
		switch {
		case errors.Is(err, proc.ErrVanished), errors.Is(err, proc.ErrNoExe):
			return false, nil
		case errors.Is(err, fs.ErrPermission) && c.opts.IgnorePermission:
			return false, nil
		case errors.Is(err, proc.ErrPathTooLong):
			slog.Warn("executable path too long, skipping", "pid", pid)
			return false, nil
		}
		return false, fmt.Errorf("read executable link: %w", err)
	}

	path, deleted := proc.TrimDeleted(target)
	if !deleted {
		return false, nil
	}
	path = proc.TrimStaging(path, c.opts.StagingSuffixes)
	if !c.opts.Rules.Match(path) {
		return false, nil
	}

	stale := c.differs(pid, c.fs.Path(pid, "exe"), path)
	if !stale {
		return false, nil
	}
	if err := r.add(path); err != nil {
		return true, fmt.Errorf("report: %w", err)
	}
	return true, nil
}

func (c *Classifier) checkMaps(pid int, r *report) error {
	s, err := c.fs.OpenMaps(pid, c.opts.StagingSuffixes)
	if err != nil {
		switch {
		case errors.Is(err, proc.ErrVanished):
			return nil
		case errors.Is(err, fs.ErrPermission) && c.opts.IgnorePermission:
			return nil
		}
		return fmt.Errorf("open maps: %w", err)
	}
	defer s.Close()

	for s.Scan() {
		e := s.Entry()
		if !c.opts.Rules.Match(e.Path) {
			continue
		}
		if !c.differs(pid, c.fs.Path(pid, "map_files", e.Range()), e.Path) {
			continue
		}
		if err := r.add(e.Path); err != nil {
			return fmt.Errorf("report: %w", err)
		}
		if !r.verbose {
			return nil
		}
	}
	if err := s.Err(); err != nil {
		if !c.fs.Exists(pid) {
			return nil
		}
		return fmt.Errorf("read maps: %w", err)
	}
	return nil
}

// differs compares the image the process runs (live) with path as seen from
// the process's root. A replacement that cannot be opened counts as stale.
func (c *Classifier) differs(pid int, live, path string) bool {
	onDisk, err := c.fs.RootedPath(pid, path)
	if err != nil {
		slog.Warn("path too long, skipping", "pid", pid, "path", path)
		return false
	}

	eq, err := filecmp.Equal(live, onDisk)
	switch {
	case err == nil:
		if !eq {
			slog.Debug("content differs", "pid", pid, "path", path)
		}
		return !eq
	case !c.fs.Exists(pid):
		return false
	case errors.Is(err, fs.ErrPermission) && c.opts.IgnorePermission:
		return false
	case errors.Is(err, filecmp.ErrInconclusive):
		slog.Debug("cannot compare, assuming replaced", "pid", pid, "path", path, "err", err)
		return true
	}
	slog.Warn("compare failed, assuming replaced", "pid", pid, "path", path, "err", err)
	return true
}
