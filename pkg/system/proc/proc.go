//go:build linux

package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/procfs"

	"github.com/ja7ad/procs-need-restart/pkg/system/cgroup"
)

const (
	// DefaultRoot is the usual procfs mount point.
	DefaultRoot = "/proc"

	// PathMax mirrors the kernel's PATH_MAX. Longer paths are rejected,
	// never truncated.
	PathMax = 4096
)

// Root returns the procfs mount point to use. The PROCFS_PATH env var
// overrides DefaultRoot (useful for testing against a fake tree).
func Root() string {
	if v := os.Getenv("PROCFS_PATH"); v != "" {
		return v
	}
	return DefaultRoot
}

// FS is a procfs tree rooted at an arbitrary directory.
type FS struct {
	root string
	pfs  procfs.FS
}

// NewFS opens the procfs tree at root. An empty root means Root().
func NewFS(root string) (FS, error) {
	if root == "" {
		root = Root()
	}
	pfs, err := procfs.NewFS(root)
	if err != nil {
		return FS{}, fmt.Errorf("proc: open %s: %w", root, err)
	}
	return FS{root: root, pfs: pfs}, nil
}

// Root returns the mount point of this tree.
func (f FS) Root() string { return f.root }

// Path joins elem onto <root>/<pid>.
func (f FS) Path(pid int, elem ...string) string {
	return filepath.Join(append([]string{f.root, strconv.Itoa(pid)}, elem...)...)
}

// RootedPath returns path as seen through the process's own root directory
// (<root>/<pid>/root<path>), so files are looked up in the process's mount
// namespace. path must be absolute; it is not cleaned.
func (f FS) RootedPath(pid int, path string) (string, error) {
	p := f.Path(pid, "root") + path
	if len(p) > PathMax {
		return "", fmt.Errorf("%w: %s", ErrPathTooLong, p)
	}
	return p, nil
}

// Exists reports whether <root>/<pid> is still present. Anything other than
// "not found" counts as present.
func (f FS) Exists(pid int) bool {
	_, err := os.Stat(f.Path(pid))
	return !errors.Is(err, fs.ErrNotExist)
}

// PIDs lists the numeric entries of the tree in the order procfs yields them.
func (f FS) PIDs() ([]int, error) {
	procs, err := f.pfs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("proc: list %s: %w", f.root, err)
	}
	pids := make([]int, 0, len(procs))
	for _, p := range procs {
		if p.PID > 0 {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}

// Comm returns the command name from /proc/<pid>/comm.
func (f FS) Comm(pid int) (string, error) {
	p, err := f.pfs.Proc(pid)
	if err != nil {
		return "", err
	}
	return p.Comm()
}

// Unit returns the systemd unit the process belongs to, from
// /proc/<pid>/cgroup, or "" if it is not part of a service or scope.
func (f FS) Unit(pid int) (string, error) {
	p, err := f.pfs.Proc(pid)
	if err != nil {
		return "", err
	}
	cgs, err := p.Cgroups()
	if err != nil {
		return "", err
	}
	return cgroup.UnitOf(cgs), nil
}
