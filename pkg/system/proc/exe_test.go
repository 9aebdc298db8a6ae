//go:build linux

package proc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ja7ad/procs-need-restart/pkg/system/proc/proctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimDeleted(t *testing.T) {
	t.Run("marked", func(t *testing.T) {
		s, ok := TrimDeleted("/usr/bin/foo (deleted)")
		assert.True(t, ok)
		assert.Equal(t, "/usr/bin/foo", s)
	})
	t.Run("unmarked", func(t *testing.T) {
		s, ok := TrimDeleted("/usr/bin/foo")
		assert.False(t, ok)
		assert.Equal(t, "/usr/bin/foo", s)
	})
	t.Run("marker_without_space", func(t *testing.T) {
		_, ok := TrimDeleted("/usr/bin/foo(deleted)")
		assert.False(t, ok)
	})
}

func TestTrimStaging(t *testing.T) {
	assert.Equal(t, "/usr/bin/foo", TrimStaging("/usr/bin/foo.apk-new", DefaultStagingSuffixes))
	assert.Equal(t, "/usr/bin/foo", TrimStaging("/usr/bin/foo", DefaultStagingSuffixes))
	assert.Equal(t, "/usr/bin/foo.apk-new", TrimStaging("/usr/bin/foo.apk-new", nil))
	// only the first matching suffix is removed
	assert.Equal(t, "/a/b.dpkg-new", TrimStaging("/a/b.dpkg-new.apk-new", []string{".apk-new", ".dpkg-new"}))
	assert.Equal(t, "/a/b", TrimStaging("/a/b", []string{""}))
}

func TestFS_ExeLink(t *testing.T) {
	tree := proctest.New(t)
	tree.Process(10).Exe("/usr/bin/foo (deleted)")
	tree.Process(11).Exe("/usr/bin/bar")

	pfs, err := NewFS(tree.Root())
	require.NoError(t, err)

	t.Run("deleted_target", func(t *testing.T) {
		target, err := pfs.ExeLink(10)
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/foo (deleted)", target)
	})
	t.Run("plain_target", func(t *testing.T) {
		target, err := pfs.ExeLink(11)
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/bar", target)
	})
	t.Run("vanished", func(t *testing.T) {
		_, err := pfs.ExeLink(99)
		require.ErrorIs(t, err, ErrVanished)
	})
	t.Run("no_exe_entry", func(t *testing.T) {
		tree.Process(13)
		_, err := pfs.ExeLink(13)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrVanished))
		assert.False(t, errors.Is(err, ErrNoExe))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestFS_IsKernel_FakeTree(t *testing.T) {
	tree := proctest.New(t)
	tree.Process(20).Exe("/usr/bin/foo")
	tree.Process(21) // no exe entry at all
	p := tree.Process(22)
	proctest.WriteFile(t, filepath.Join(p.Dir(), "exe"), "") // not a link

	pfs, err := NewFS(tree.Root())
	require.NoError(t, err)

	assert.False(t, pfs.IsKernel(20), "process with an exe target")
	assert.False(t, pfs.IsKernel(21), "missing entry means vanished, not kernel")
	assert.False(t, pfs.IsKernel(22), "readlink EINVAL is not ENOENT")
	assert.False(t, pfs.IsKernel(999), "missing process")
}

// kthreadd is PID 2 on a host PID namespace; containers usually hide it.
func kernelThreadPID(t *testing.T) int {
	t.Helper()
	b, err := os.ReadFile("/proc/2/comm")
	if err != nil || strings.TrimSpace(string(b)) != "kthreadd" {
		t.Skip("skipping: no kernel threads visible in this PID namespace")
	}
	return 2
}

func TestFS_IsKernel_RealKernelThread(t *testing.T) {
	pid := kernelThreadPID(t)
	pfs, err := NewFS(DefaultRoot)
	require.NoError(t, err)

	assert.True(t, pfs.IsKernel(pid))
	assert.False(t, pfs.IsKernel(os.Getpid()))

	_, err = pfs.ExeLink(pid)
	require.ErrorIs(t, err, ErrNoExe)
}

func TestFS_ExeLink_Self(t *testing.T) {
	if _, err := os.Stat("/proc/self/exe"); err != nil {
		t.Skipf("skipping: /proc not available: %v", err)
	}
	pfs, err := NewFS(DefaultRoot)
	require.NoError(t, err)

	target, err := pfs.ExeLink(os.Getpid())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(target))
}

func TestFS_ExeLink_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("skipping: root bypasses permission checks")
	}
	if _, err := os.Stat("/proc/1/exe"); err != nil {
		t.Skipf("skipping: /proc not available: %v", err)
	}
	pfs, err := NewFS(DefaultRoot)
	require.NoError(t, err)

	_, err = pfs.ExeLink(1)
	if err == nil {
		t.Skip("skipping: PID 1 is readable by this user")
	}
	assert.True(t, errors.Is(err, os.ErrPermission) || errors.Is(err, ErrNoExe), "got %v", err)
}
