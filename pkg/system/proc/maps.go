//go:build linux

package proc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxMapsLine bounds one /proc/<pid>/maps line: the fixed fields in front
// of the path take well under 256 bytes on 64-bit kernels.
const maxMapsLine = PathMax + 256

// MapEntry is one file-backed region from /proc/<pid>/maps.
type MapEntry struct {
	Start    uint64
	End      uint64
	DevMajor uint32
	Inode    uint64
	Path     string
}

// Range formats the address range the way /proc/<pid>/map_files names it.
func (e MapEntry) Range() string {
	return fmt.Sprintf("%x-%x", e.Start, e.End)
}

// MapsScanner yields the deleted or replaced file mappings of a process.
//
// Only lines whose path carries DeletedSuffix are decoded. Consecutive lines
// naming the same file (one per permission variant) collapse into one
// entry, and anonymous/synthetic regions (inode 0 or device major 0, e.g.
// /SYSV*, /drm, /i915) are dropped. Over-long and malformed lines are
// skipped.
//
// Usage mirrors bufio.Scanner:
//
//	for s.Scan() {
//		e := s.Entry()
//	}
//	if err := s.Err(); err != nil { ... }
type MapsScanner struct {
	r        *bufio.Reader
	c        io.Closer
	suffixes []string

	last  string
	entry MapEntry
	err   error
}

// NewMapsScanner reads maps records from r. stagingSuffixes are stripped
// from each path after the deletion marker.
func NewMapsScanner(r io.Reader, stagingSuffixes []string) *MapsScanner {
	return &MapsScanner{
		r:        bufio.NewReaderSize(r, maxMapsLine),
		suffixes: stagingSuffixes,
	}
}

// OpenMaps opens /proc/<pid>/maps. If the open fails because the process
// exited, the error wraps ErrVanished.
func (f FS) OpenMaps(pid int, stagingSuffixes []string) (*MapsScanner, error) {
	path := f.Path(pid, "maps")
	fh, err := os.Open(path)
	if err != nil {
		if !f.Exists(pid) {
			return nil, fmt.Errorf("%w: %s", ErrVanished, path)
		}
		return nil, err
	}
	s := NewMapsScanner(fh, stagingSuffixes)
	s.c = fh
	return s, nil
}

// Scan advances to the next entry.
func (s *MapsScanner) Scan() bool {
	for s.err == nil {
		line, ok := s.readLine()
		if !ok {
			return false
		}
		name, deleted := TrimDeleted(line)
		if !deleted {
			continue
		}
		name = TrimStaging(name, s.suffixes)

		e, ok := parseMapsLine(name)
		if !ok {
			continue
		}
		if e.Path == s.last {
			continue
		}
		s.last = e.Path

		if e.Inode == 0 || e.DevMajor == 0 {
			continue
		}
		s.entry = e
		return true
	}
	return false
}

// Entry returns the entry found by the last successful Scan.
func (s *MapsScanner) Entry() MapEntry { return s.entry }

// Err returns the first read error other than io.EOF.
func (s *MapsScanner) Err() error { return s.err }

// Close closes the underlying file, if the scanner owns one.
func (s *MapsScanner) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

func (s *MapsScanner) readLine() (string, bool) {
	for {
		b, err := s.r.ReadSlice('\n')
		switch {
		case err == nil:
			return string(b[:len(b)-1]), true
		case errors.Is(err, bufio.ErrBufferFull):
			if !s.skipLine() {
				return "", false
			}
		case errors.Is(err, io.EOF):
			if len(b) > 0 {
				return string(b), true
			}
			return "", false
		default:
			s.err = err
			return "", false
		}
	}
}

// skipLine discards the rest of an over-long line.
func (s *MapsScanner) skipLine() bool {
	for {
		_, err := s.r.ReadSlice('\n')
		switch {
		case err == nil:
			return true
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return false
		default:
			s.err = err
			return false
		}
	}
}

// parseMapsLine decodes
//
//	<start>-<end> <perms> <offset> <major>:<minor> <inode> <ws> <path>
//
// with hex addresses, offset and device numbers and a decimal inode.
func parseMapsLine(line string) (MapEntry, bool) {
	var e MapEntry

	rng, rest, ok := nextField(line)
	if !ok {
		return e, false
	}
	startS, endS, ok := strings.Cut(rng, "-")
	if !ok {
		return e, false
	}
	start, err := strconv.ParseUint(startS, 16, 64)
	if err != nil {
		return e, false
	}
	end, err := strconv.ParseUint(endS, 16, 64)
	if err != nil {
		return e, false
	}

	// perms
	if _, rest, ok = nextField(rest); !ok {
		return e, false
	}

	off, rest, ok := nextField(rest)
	if !ok {
		return e, false
	}
	if _, err := strconv.ParseUint(off, 16, 64); err != nil {
		return e, false
	}

	dev, rest, ok := nextField(rest)
	if !ok {
		return e, false
	}
	majS, _, ok := strings.Cut(dev, ":")
	if !ok {
		return e, false
	}
	major, err := strconv.ParseUint(majS, 16, 32)
	if err != nil {
		return e, false
	}

	inoS, rest, ok := nextField(rest)
	if !ok {
		return e, false
	}
	inode, err := strconv.ParseUint(inoS, 10, 64)
	if err != nil {
		return e, false
	}

	path := strings.TrimLeft(rest, " \t")
	if path == "" || len(path) > PathMax {
		return e, false
	}

	e.Start, e.End = start, end
	e.DevMajor = uint32(major)
	e.Inode = inode
	e.Path = path
	return e, true
}

// nextField skips leading blanks and returns the next blank-delimited field
// and everything after it (starting at the delimiter).
func nextField(s string) (field, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", false
	}
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, "", true
	}
	return s[:i], s[i:], true
}
