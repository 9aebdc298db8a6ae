//go:build linux

package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DeletedSuffix is appended by the kernel to link targets and map names
// whose file has been unlinked (deleted or replaced by rename).
const DeletedSuffix = " (deleted)"

// DefaultStagingSuffixes are suffixes package managers give to replacement
// files before moving them into place. apk-tools uses ".apk-new".
var DefaultStagingSuffixes = []string{".apk-new"}

// TrimDeleted strips DeletedSuffix and reports whether it was present.
func TrimDeleted(s string) (string, bool) {
	return strings.CutSuffix(s, DeletedSuffix)
}

// TrimStaging strips the first of suffixes that s ends with.
func TrimStaging(s string, suffixes []string) string {
	for _, sfx := range suffixes {
		if sfx == "" {
			continue
		}
		if t, ok := strings.CutSuffix(s, sfx); ok {
			return t
		}
	}
	return s
}

// IsKernel reports whether pid is a kernel thread: reading the exe link
// fails with ENOENT while the link itself still exists. A process that has
// simply exited loses the whole entry, so it is not reported as kernel.
func (f FS) IsKernel(pid int) bool {
	exe := f.Path(pid, "exe")
	if _, err := os.Readlink(exe); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return false
	}
	_, err := os.Lstat(exe)
	return err == nil
}

// ExeLink reads the target of /proc/<pid>/exe.
//
// Errors:
//   - ErrVanished: the process no longer exists
//   - ErrNoExe: kernel thread or zombie, the link has no target
//   - ErrPathTooLong: the target does not fit in PathMax
//   - fs.ErrPermission (wrapped in *fs.PathError): not allowed to look
func (f FS) ExeLink(pid int) (string, error) {
	exe := f.Path(pid, "exe")

	target, err := os.Readlink(exe)
	if err != nil {
		if !f.Exists(pid) {
			return "", fmt.Errorf("%w: %s", ErrVanished, exe)
		}
		if errors.Is(err, fs.ErrNotExist) {
			if _, lerr := os.Lstat(exe); lerr == nil {
				return "", fmt.Errorf("%w: %s", ErrNoExe, exe)
			}
		}
		return "", err
	}
	if len(target) >= PathMax {
		return "", fmt.Errorf("%w: %s", ErrPathTooLong, exe)
	}
	return target, nil
}
