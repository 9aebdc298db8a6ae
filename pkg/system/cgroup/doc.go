// Package cgroup maps a process's cgroup membership to the systemd unit
// that owns it, which is what an administrator restarts.
//
// The membership itself comes from /proc/<pid>/cgroup (see proc.FS.Unit).
// On a unified (v2) host the single "0::<path>" line is used; on legacy
// v1 hosts the "name=systemd" hierarchy.
package cgroup
