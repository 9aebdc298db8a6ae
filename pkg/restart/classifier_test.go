//go:build linux

package restart

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/procs-need-restart/pkg/filter"
	"github.com/ja7ad/procs-need-restart/pkg/system/proc"
	"github.com/ja7ad/procs-need-restart/pkg/system/proc/proctest"
)

// fixture is a fake procfs tree plus a directory standing in for the
// filesystem the fake processes run from.
type fixture struct {
	t    *testing.T
	tree *proctest.Tree
	dir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, tree: proctest.New(t), dir: t.TempDir()}
}

// file writes <dir>/<name> and returns its path.
func (f *fixture) file(name, content string) string {
	f.t.Helper()
	return proctest.WriteFile(f.t, filepath.Join(f.dir, name), content)
}

func (f *fixture) path(name string) string { return filepath.Join(f.dir, name) }

// exe creates pid running <dir>/<name>. The running image holds image; the
// file now at <dir>/<name> holds onDisk, or is absent when onDisk is nil.
func (f *fixture) exe(pid int, name, image string, onDisk *string) *proctest.Process {
	f.t.Helper()
	running := f.file(name+proc.DeletedSuffix, image)
	if onDisk != nil {
		f.file(name, *onDisk)
	}
	return f.tree.Process(pid).Exe(running)
}

func (f *fixture) fs() proc.FS {
	f.t.Helper()
	pfs, err := proc.NewFS(f.tree.Root())
	require.NoError(f.t, err)
	return pfs
}

func (f *fixture) classify(opts Options, pid int) (Result, string) {
	f.t.Helper()
	var out bytes.Buffer
	res := NewClassifier(f.fs(), opts).Classify(pid, NewTextSink(&out))
	return res, out.String()
}

func ptr(s string) *string { return &s }

func TestClassify_ExeReplacedWithDifferentContent(t *testing.T) {
	f := newFixture(t)
	f.exe(100, "app", "old image", ptr("new image")).Maps()

	res, out := f.classify(Options{}, 100)
	assert.Equal(t, Stale, res.Outcome)
	require.NoError(t, res.Err)
	assert.Equal(t, "100\n", out)
	assert.Empty(t, res.Paths, "paths are only collected in verbose mode")
}

func TestClassify_ExeReplacedWithIdenticalContent(t *testing.T) {
	f := newFixture(t)
	f.exe(101, "app", "same image", ptr("same image")).Maps()

	res, out := f.classify(Options{}, 101)
	assert.Equal(t, NotStale, res.Outcome)
	assert.Empty(t, out)
}

func TestClassify_ExeNotDeleted(t *testing.T) {
	f := newFixture(t)
	f.tree.Process(102).Exe(f.file("app", "image")).Maps()

	res, out := f.classify(Options{}, 102)
	assert.Equal(t, NotStale, res.Outcome)
	assert.Empty(t, out)
}

func TestClassify_ExeReplacementMissing(t *testing.T) {
	f := newFixture(t)
	f.exe(103, "app", "old image", nil).Maps()

	res, out := f.classify(Options{}, 103)
	assert.Equal(t, Stale, res.Outcome)
	assert.Equal(t, "103\n", out)
}

func TestClassify_StagingSuffix(t *testing.T) {
	t.Run("compared_against_final_name", func(t *testing.T) {
		f := newFixture(t)
		// running image was the staged file; the final name now holds the
		// same bytes and the staged name is gone
		f.exe(110, "foo.apk-new", "v2", nil).Maps()
		f.file("foo", "v2")

		res, _ := f.classify(Options{StagingSuffixes: proc.DefaultStagingSuffixes}, 110)
		assert.Equal(t, NotStale, res.Outcome)

		res, _ = f.classify(Options{}, 110)
		assert.Equal(t, Stale, res.Outcome, "without stripping foo.apk-new is missing")
	})
	t.Run("staged_file_ignored", func(t *testing.T) {
		f := newFixture(t)
		f.exe(111, "foo", "v1", ptr("v1")).Maps()
		f.file("foo.apk-new", "v2")

		res, _ := f.classify(Options{StagingSuffixes: proc.DefaultStagingSuffixes}, 111)
		assert.Equal(t, NotStale, res.Outcome)
	})
}

func TestClassify_Rules(t *testing.T) {
	f := newFixture(t)
	f.exe(120, "app", "old", ptr("new")).Maps()

	exclude, err := filter.Parse([]string{"!" + f.path("*")}, filter.SyntaxFnmatch)
	require.NoError(t, err)
	res, out := f.classify(Options{Rules: exclude}, 120)
	assert.Equal(t, NotStale, res.Outcome)
	assert.Empty(t, out)

	unrelated, err := filter.Parse([]string{"/nowhere/*"}, filter.SyntaxFnmatch)
	require.NoError(t, err)
	res, _ = f.classify(Options{Rules: unrelated}, 120)
	assert.Equal(t, NotStale, res.Outcome, "paths no rule matches are not checked")

	include, err := filter.Parse([]string{f.path("*")}, filter.SyntaxFnmatch)
	require.NoError(t, err)
	res, _ = f.classify(Options{Rules: include}, 120)
	assert.Equal(t, Stale, res.Outcome)
}

// lib is one deleted mapping: image is what the process has mapped, onDisk
// what the path holds now (nil: removed).
type lib struct {
	name   string
	image  string
	onDisk *string
}

// libProcess adds the given mappings to exe, or to a new pid running an
// up-to-date executable when exe is nil.
func (f *fixture) libProcess(pid int, exe *proctest.Process, libs ...lib) *proctest.Process {
	f.t.Helper()
	p := exe
	if p == nil {
		p = f.tree.Process(pid).Exe(f.file(fmt.Sprintf("bin%d", pid), "current"))
	}
	var lines []string
	for i, l := range libs {
		start := uint64(0x7f0000000000 + i*0x10000)
		end := start + 0x1000
		path := f.path(l.name)
		if l.onDisk != nil {
			f.file(l.name, *l.onDisk)
		}
		inode := uint64(1000 + i)
		// two permission variants per file, like the kernel emits them
		lines = append(lines,
			proctest.MapsLine(start, end, "08:01", inode, path+proc.DeletedSuffix),
			proctest.MapsLine(end, end+0x1000, "08:01", inode, path+proc.DeletedSuffix),
		)
		p.MapFile(start, end, l.image)
	}
	p.Maps(lines...)
	return p
}

func TestClassify_MappedFiles(t *testing.T) {
	f := newFixture(t)
	f.libProcess(200, nil,
		lib{name: "libsame.so", image: "same", onDisk: ptr("same")},
		lib{name: "libnew.so", image: "v1", onDisk: ptr("v2")},
		lib{name: "libgone.so", image: "v1"},
	)

	res, out := f.classify(Options{Verbose: true}, 200)
	assert.Equal(t, Stale, res.Outcome)
	assert.Equal(t, []string{f.path("libnew.so"), f.path("libgone.so")}, res.Paths)
	assert.Equal(t, "200\t"+f.path("libnew.so")+"\n200\t"+f.path("libgone.so")+"\n", out)

	res, out = f.classify(Options{}, 200)
	assert.Equal(t, Stale, res.Outcome)
	assert.Equal(t, "200\n", out, "non-verbose reports the pid once")
}

func TestClassify_MappedFileIdentical(t *testing.T) {
	f := newFixture(t)
	f.libProcess(201, nil, lib{name: "libsame.so", image: "same", onDisk: ptr("same")})

	res, out := f.classify(Options{Verbose: true}, 201)
	assert.Equal(t, NotStale, res.Outcome)
	assert.Empty(t, out)
}

func TestClassify_VerboseReportsExeThenMaps(t *testing.T) {
	f := newFixture(t)
	p := f.exe(210, "app", "old", ptr("new"))
	f.libProcess(210, p, lib{name: "libnew.so", image: "v1", onDisk: ptr("v2")})

	res, out := f.classify(Options{Verbose: true}, 210)
	assert.Equal(t, Stale, res.Outcome)
	assert.Equal(t, []string{f.path("app"), f.path("libnew.so")}, res.Paths)
	assert.Equal(t, "210\t"+f.path("app")+"\n210\t"+f.path("libnew.so")+"\n", out)
}

func TestClassify_VerboseReportsEachPathOnce(t *testing.T) {
	f := newFixture(t)
	app := f.path("app")
	libx := f.file("libx.so", "v2")
	f.exe(215, "app", "old", ptr("new")).
		Maps(
			proctest.MapsLine(0x1000, 0x2000, "08:01", 11, app+proc.DeletedSuffix),
			proctest.MapsLine(0x3000, 0x4000, "08:01", 12, libx+proc.DeletedSuffix),
			proctest.MapsLine(0x5000, 0x6000, "08:01", 11, app+proc.DeletedSuffix),
		).
		MapFile(0x1000, 0x2000, "old").
		MapFile(0x3000, 0x4000, "v1").
		MapFile(0x5000, 0x6000, "old")

	res, out := f.classify(Options{Verbose: true}, 215)
	assert.Equal(t, Stale, res.Outcome)
	assert.Equal(t, []string{app, libx}, res.Paths)
	assert.Equal(t, "215\t"+app+"\n215\t"+libx+"\n", out)
}

func TestClassify_StaleExeSkipsMapsUnlessVerbose(t *testing.T) {
	f := newFixture(t)
	// no maps file: reading it would fail
	f.exe(220, "app", "old", ptr("new"))

	res, out := f.classify(Options{}, 220)
	assert.Equal(t, Stale, res.Outcome)
	require.NoError(t, res.Err)
	assert.Equal(t, "220\n", out)

	res, out = f.classify(Options{Verbose: true}, 220)
	assert.Equal(t, Failed, res.Outcome)
	require.Error(t, res.Err)
	assert.Equal(t, []string{f.path("app")}, res.Paths, "findings made before the failure are kept")
	assert.Equal(t, "220\t"+f.path("app")+"\n", out)
}

func TestClassify_MapsFilterApplies(t *testing.T) {
	f := newFixture(t)
	f.libProcess(230, nil,
		lib{name: "libskip.so", image: "v1", onDisk: ptr("v2")},
		lib{name: "libkeep.so", image: "v1", onDisk: ptr("v2")},
	)
	rules, err := filter.Parse([]string{"!*/libskip.so"}, filter.SyntaxFnmatch)
	require.NoError(t, err)
	res, _ := f.classify(Options{Verbose: true, Rules: rules}, 230)
	assert.Equal(t, NotStale, res.Outcome, "a lone negated rule selects nothing")

	rules, err = filter.Parse([]string{"!*/libskip.so", "*.so"}, filter.SyntaxFnmatch)
	require.NoError(t, err)
	res, _ = f.classify(Options{Verbose: true, Rules: rules}, 230)
	assert.Equal(t, Stale, res.Outcome)
	assert.Equal(t, []string{f.path("libkeep.so")}, res.Paths)
}

func TestClassify_Vanished(t *testing.T) {
	f := newFixture(t)
	f.tree.Process(1)

	res, out := f.classify(Options{Verbose: true}, 4242)
	assert.Equal(t, NotStale, res.Outcome)
	require.NoError(t, res.Err)
	assert.Empty(t, out)
}

func TestClassify_MissingMapsIsFailure(t *testing.T) {
	f := newFixture(t)
	f.tree.Process(240).Exe(f.file("app", "current"))

	res, _ := f.classify(Options{}, 240)
	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, os.ErrNotExist)
}

func TestClassify_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("skipping: root bypasses file modes")
	}
	f := newFixture(t)
	p := f.tree.Process(250).Exe(f.file("app", "current")).Maps()
	require.NoError(t, os.Chmod(filepath.Join(p.Dir(), "maps"), 0))

	res, _ := f.classify(Options{IgnorePermission: true}, 250)
	assert.Equal(t, NotStale, res.Outcome)
	require.NoError(t, res.Err)

	res, _ = f.classify(Options{}, 250)
	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, os.ErrPermission)
}

func TestClassify_UnreadableReplacement(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("skipping: root bypasses file modes")
	}
	f := newFixture(t)
	f.exe(251, "app", "same", ptr("same")).Maps()
	require.NoError(t, os.Chmod(f.path("app"), 0))

	res, _ := f.classify(Options{IgnorePermission: true}, 251)
	assert.Equal(t, NotStale, res.Outcome)

	res, _ = f.classify(Options{}, 251)
	assert.Equal(t, Stale, res.Outcome, "a replacement we cannot read is not what the process loaded")
}

type failingSink struct{}

func (failingSink) Report(Finding) error { return errors.New("broken pipe") }

func TestClassify_SinkError(t *testing.T) {
	f := newFixture(t)
	f.exe(260, "app", "old", ptr("new")).Maps()

	res := NewClassifier(f.fs(), Options{}).Classify(260, failingSink{})
	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorContains(t, res.Err, "broken pipe")
}

func TestClassify_KernelThreadExplicit(t *testing.T) {
	if !kernelThreadsVisible() {
		t.Skip("skipping: no kernel threads visible in this PID namespace")
	}
	pfs, err := proc.NewFS(proc.DefaultRoot)
	require.NoError(t, err)

	var out bytes.Buffer
	res := NewClassifier(pfs, Options{Verbose: true, IgnorePermission: os.Geteuid() != 0}).
		Classify(2, NewTextSink(&out))
	assert.Equal(t, NotStale, res.Outcome)
	require.NoError(t, res.Err)
	assert.Empty(t, out.String())
}

func TestClassify_Self(t *testing.T) {
	if _, err := os.Stat("/proc/self/maps"); err != nil {
		t.Skipf("skipping: /proc not available: %v", err)
	}
	pfs, err := proc.NewFS(proc.DefaultRoot)
	require.NoError(t, err)

	res := NewClassifier(pfs, Options{Verbose: true}).Classify(os.Getpid(), &bufferSink{})
	assert.NotEqual(t, Failed, res.Outcome, "err: %v", res.Err)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "not-stale", NotStale.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "Outcome(7)", Outcome(7).String())
}
