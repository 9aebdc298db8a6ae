// Package proc reads the parts of a Linux procfs tree needed to tell whether
// a running process still executes the files that are on disk.
//
// Overview
//
//   - FS:
//     NewFS(root) opens a procfs tree. root defaults to /proc and can be
//     overridden with PROCFS_PATH, which lets tests point the package at a
//     fake tree built in a temp dir (see pkg/system/proc/proctest).
//
//   - Identity:
//     ExeLink(pid)  : target of /proc/<pid>/exe, possibly with " (deleted)"
//     IsKernel(pid) : readlink fails with ENOENT but the link exists
//     PIDs()        : numeric entries of the tree
//     Comm(pid)     : /proc/<pid>/comm
//
//   - Memory maps:
//     OpenMaps(pid) returns a MapsScanner over /proc/<pid>/maps that yields
//     only deleted, file-backed regions. Consecutive records for the same
//     file are collapsed; regions with inode 0 or device major 0 (SysV shm,
//     DRM buffers, memfd) are dropped.
//
//   - Paths:
//     Path(pid, elem...)    : <root>/<pid>/<elem...>
//     RootedPath(pid, path) : <root>/<pid>/root<path>, i.e. path as seen from
//     the process's mount namespace. Longer than PathMax is an error.
//
//   - Errors (errs.go):
//     ErrVanished    : the process exited while being inspected
//     ErrNoExe       : the exe link has no target (kernel thread, zombie)
//     ErrPathTooLong : a path would exceed PathMax
//
// # Deleted and replaced files
//
// When a file that a process has open or mapped is unlinked, the kernel keeps
// the inode alive and appends " (deleted)" to the name it reports. Package
// upgrades usually write the new file next to the old one and rename it into
// place, so the running image shows up as deleted even though a file with the
// same name exists again. TrimDeleted strips the marker; TrimStaging strips a
// package manager's temporary suffix (".apk-new" by default) so the name
// points at the final location.
//
// The old content stays reachable through /proc/<pid>/exe and
// /proc/<pid>/map_files/<start>-<end>; MapEntry.Range formats the latter name.
//
// Example
//
//	/*
//	fs, err := proc.NewFS("")
//	if err != nil { log.Fatal(err) }
//
//	s, err := fs.OpenMaps(pid, proc.DefaultStagingSuffixes)
//	if err != nil { log.Fatal(err) }
//	defer s.Close()
//	for s.Scan() {
//	    e := s.Entry()
//	    fmt.Println(fs.Path(pid, "map_files", e.Range()), e.Path)
//	}
//	if err := s.Err(); err != nil { log.Fatal(err) }
//	*/
//
// Permissions
//
//   - exe, map_files and root of other users' processes need CAP_SYS_PTRACE
//     (in practice, root). Unprivileged callers get fs.ErrPermission.
//   - maps is readable for most processes, but map_files is not.
//
// Package import path: github.com/ja7ad/procs-need-restart/pkg/system/proc
package proc
