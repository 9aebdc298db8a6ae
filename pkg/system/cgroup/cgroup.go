//go:build linux

package cgroup

import (
	"strings"

	"github.com/prometheus/procfs"
)

type Version int

const (
	Unsupported Version = iota // no hierarchy systemd tracks units in
	V1                         // legacy name=systemd hierarchy
	V2                         // unified hierarchy
)

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	default:
		return "unsupported"
	}
}

// Pick returns the membership systemd uses to track units: the unified
// hierarchy (ID 0) if present, else the v1 "name=systemd" hierarchy.
func Pick(cgs []procfs.Cgroup) (procfs.Cgroup, Version) {
	var v1 *procfs.Cgroup
	for i, cg := range cgs {
		if cg.HierarchyID == 0 && len(cg.Controllers) == 0 {
			return cg, V2
		}
		for _, c := range cg.Controllers {
			if c == "name=systemd" && v1 == nil {
				v1 = &cgs[i]
			}
		}
	}
	if v1 != nil {
		return *v1, V1
	}
	return procfs.Cgroup{}, Unsupported
}

// Unit returns the innermost systemd service or scope in a cgroup path,
// e.g. "sshd.service" for "/system.slice/sshd.service", or "" if the path
// is not below a unit.
func Unit(path string) string {
	elems := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(elems) - 1; i >= 0; i-- {
		e := elems[i]
		if strings.HasSuffix(e, ".service") || strings.HasSuffix(e, ".scope") {
			return unescape(e)
		}
	}
	return ""
}

// UnitOf combines Pick and Unit.
func UnitOf(cgs []procfs.Cgroup) string {
	cg, v := Pick(cgs)
	if v == Unsupported {
		return ""
	}
	return Unit(cg.Path)
}

// unescape undoes systemd's \xNN escaping of unit names in cgroup paths.
func unescape(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if n, ok := hexByte(s[i+2], s[i+3]); ok {
				b.WriteByte(n)
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexVal(hi)
	l, ok2 := hexVal(lo)
	return h<<4 | l, ok1 && ok2
}

func hexVal(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
