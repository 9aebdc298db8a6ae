//go:build linux

// Package filecmp tells whether two files have identical contents.
//
// Sizes are compared first; files of equal size are mapped read-only and
// compared byte for byte. If the kernel refuses the mapping the files are
// streamed instead, with the same result. Functions in this package keep no
// state between calls and may be used concurrently.
package filecmp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

const chunkSize = 64 << 10

var (
	mmap   = unix.Mmap
	munmap = unix.Munmap
)

// Equal reports whether the files at a and b have the same bytes.
//
// Failing to open or stat either file returns an error matching
// ErrInconclusive. Read errors after that are returned as-is.
func Equal(a, b string) (bool, error) {
	return compare(a, b, true)
}

// EqualStreamed is Equal without the memory-mapped fast path.
func EqualStreamed(a, b string) (bool, error) {
	return compare(a, b, false)
}

func compare(a, b string, useMmap bool) (bool, error) {
	fa, sa, err := open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()

	fb, sb, err := open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	if sa != sb {
		return false, nil
	}
	if sa == 0 {
		return true, nil
	}

	if useMmap {
		eq, err := equalMapped(fa, fb, sa)
		if err == nil {
			return eq, nil
		}
	}
	return equalStreamed(fa, fb)
}

func open(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, inconclusive(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, inconclusive(err)
	}
	return f, st.Size(), nil
}

// equalMapped compares both files through read-only mappings. A file
// truncated after it was mapped faults on access; the fault is returned as
// an error so the caller can stream instead.
func equalMapped(fa, fb *os.File, size int64) (eq bool, err error) {
	if int64(int(size)) != size {
		return false, fmt.Errorf("filecmp: %s: too large to map", fa.Name())
	}
	ma, err := mmap(int(fa.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return false, fmt.Errorf("filecmp: mmap %s: %w", fa.Name(), err)
	}
	defer munmap(ma)

	mb, err := mmap(int(fb.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return false, fmt.Errorf("filecmp: mmap %s: %w", fb.Name(), err)
	}
	defer munmap(mb)

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			eq, err = false, fmt.Errorf("filecmp: fault reading %s or %s: %v", fa.Name(), fb.Name(), r)
		}
	}()
	return bytes.Equal(ma, mb), nil
}

// equalStreamed compares from the current offsets, which are 0 for files
// opened by compare: mmap does not move them.
func equalStreamed(fa, fb *os.File) (bool, error) {
	ba := make([]byte, chunkSize)
	bb := make([]byte, chunkSize)
	for {
		na, erra := io.ReadFull(fa, ba)
		if erra != nil && !isEOF(erra) {
			return false, fmt.Errorf("filecmp: read %s: %w", fa.Name(), erra)
		}
		nb, errb := io.ReadFull(fb, bb)
		if errb != nil && !isEOF(errb) {
			return false, fmt.Errorf("filecmp: read %s: %w", fb.Name(), errb)
		}
		if na != nb || !bytes.Equal(ba[:na], bb[:nb]) {
			return false, nil
		}
		if erra != nil || errb != nil {
			// both hit EOF at the same length, or one grew while reading
			return isEOF(erra) && isEOF(errb), nil
		}
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
