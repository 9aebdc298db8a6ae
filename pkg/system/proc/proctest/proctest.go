//go:build linux

// Package proctest builds fake procfs trees for tests.
//
// A Tree lives under t.TempDir(). Each process gets <root>/<pid>/ with a
// "root" symlink to "/", so paths recorded in exe links and maps lines
// resolve to real files the test created elsewhere on disk.
//
//	tree := proctest.New(t)
//	img := proctest.WriteFile(t, filepath.Join(dir, "foo (deleted)"), "old")
//	p := tree.Process(42)
//	p.Exe(img)
//	p.Maps(proctest.MapsLine(0x1000, 0x2000, "08:01", 1234, lib+" (deleted)"))
package proctest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Tree is a fake procfs root.
type Tree struct {
	t    testing.TB
	root string
}

// New creates an empty tree.
func New(t testing.TB) *Tree {
	t.Helper()
	return &Tree{t: t, root: t.TempDir()}
}

// Root returns the tree's mount point.
func (tr *Tree) Root() string { return tr.root }

// Process is one <root>/<pid> directory.
type Process struct {
	t   testing.TB
	dir string
}

// Process creates <root>/<pid> with a root symlink to "/".
func (tr *Tree) Process(pid int) *Process {
	tr.t.Helper()
	dir := filepath.Join(tr.root, strconv.Itoa(pid))
	require.NoError(tr.t, os.MkdirAll(dir, 0o755))
	require.NoError(tr.t, os.Symlink("/", filepath.Join(dir, "root")))
	return &Process{t: tr.t, dir: dir}
}

// Dir returns <root>/<pid>.
func (p *Process) Dir() string { return p.dir }

// Exe points <pid>/exe at target. The target string is stored verbatim, so
// it may carry a " (deleted)" marker; create a file with that exact name to
// stand in for the running image.
func (p *Process) Exe(target string) *Process {
	p.t.Helper()
	require.NoError(p.t, os.Symlink(target, filepath.Join(p.dir, "exe")))
	return p
}

// Comm writes <pid>/comm.
func (p *Process) Comm(name string) *Process {
	p.t.Helper()
	WriteFile(p.t, filepath.Join(p.dir, "comm"), name+"\n")
	return p
}

// Cgroup writes <pid>/cgroup, one membership line per argument, e.g.
// "0::/system.slice/sshd.service".
func (p *Process) Cgroup(lines ...string) *Process {
	p.t.Helper()
	WriteFile(p.t, filepath.Join(p.dir, "cgroup"), strings.Join(lines, "\n")+"\n")
	return p
}

// Maps writes <pid>/maps, one line per argument.
func (p *Process) Maps(lines ...string) *Process {
	p.t.Helper()
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	WriteFile(p.t, filepath.Join(p.dir, "maps"), b.String())
	return p
}

// MapFile writes <pid>/map_files/<start>-<end> with the content the process
// has mapped.
func (p *Process) MapFile(start, end uint64, content string) *Process {
	p.t.Helper()
	name := fmt.Sprintf("%x-%x", start, end)
	WriteFile(p.t, filepath.Join(p.dir, "map_files", name), content)
	return p
}

// WriteFile creates path (and its parents) with content and returns path.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// MapsLine formats one /proc/<pid>/maps record.
func MapsLine(start, end uint64, dev string, inode uint64, path string) string {
	return fmt.Sprintf("%012x-%012x r-xp 00000000 %s %d                          %s",
		start, end, dev, inode, path)
}
