// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package directio opens backing files for the read-through engine's
// miss path using O_DIRECT, rounding reads up to the block size the
// way direct I/O requires, while falling back to buffered I/O on
// filesystems that don't support O_DIRECT (tmpfs, ramfs) — the
// teacher's loopback filesystem makes exactly this same tmpfs/ramfs
// exception for the same syscall flag.
package directio

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BlockSize is the direct-I/O alignment unit. Buffers passed to
// ReadAligned must have at least RoundUp(size) capacity and, under
// O_DIRECT, must themselves start at a BlockSize-aligned address; use
// AlignedBuffer to obtain one.
const BlockSize = 4096

// RoundUp rounds n up to the next multiple of BlockSize.
func RoundUp(n int64) int64 {
	return (n + BlockSize - 1) &^ (BlockSize - 1)
}

// AlignedBuffer returns a byte slice of length n whose first byte sits
// at a BlockSize-aligned address, by over-allocating and slicing
// forward to the first aligned offset. O_DIRECT rejects a read
// (EINVAL) unless the target buffer's address is block-aligned, not
// just its length; a plain make([]byte, n) gives no such guarantee,
// since the Go allocator has no alignment contract beyond the
// pointer's own word size.
func AlignedBuffer(n int64) []byte {
	if n <= 0 {
		return nil
	}
	buf := make([]byte, n+BlockSize-1)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	off := (BlockSize - addr%BlockSize) % BlockSize
	return buf[off : off+uintptr(n) : off+uintptr(n)]
}

// tmpfsMagic and ramfsMagic are the statfs f_type values for
// filesystems known not to support O_DIRECT.
const (
	tmpfsMagic = 0x01021994
	ramfsMagic = 0x28cd3d45
)

// supportsODirect reports whether path's filesystem supports
// O_DIRECT. See https://github.com/crowdsecurity/crowdsec, referenced
// by the teacher's own version of this check.
func supportsODirect(path string) (bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, fmt.Errorf("directio: statfs %q: %w", path, err)
	}
	switch int64(st.Type) {
	case tmpfsMagic, ramfsMagic:
		return false, nil
	}
	return true, nil
}

// File is an opened backing file on the read-through engine's miss
// path.
type File struct {
	fd     int
	direct bool
}

// Open opens path read-only, using O_DIRECT when the backing
// filesystem supports it and falling back to buffered I/O otherwise.
// Either way the size reported to callers is the file's true size —
// the direct-I/O rounding is an implementation detail of the read,
// never observable in the returned byte count.
func Open(path string) (*File, error) {
	useDirect, err := supportsODirect(path)
	if err != nil {
		// Statfs failing is not fatal to the read path: assume
		// buffered I/O and let the Open call itself report any real
		// problem with the path.
		useDirect = false
	}

	flags := unix.O_RDONLY
	if useDirect {
		flags |= unix.O_DIRECT
	}

	fd, err := unix.Open(path, flags, 0)
	if err != nil && useDirect {
		// Some filesystems pass the tmpfs/ramfs check above but still
		// reject O_DIRECT for other reasons (overlay, network mounts);
		// retry buffered before giving up.
		useDirect = false
		fd, err = unix.Open(path, unix.O_RDONLY, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("directio: open %q: %w", path, err)
	}

	return &File{fd: fd, direct: useDirect}, nil
}

// Size returns the file's true size via fstat.
func (f *File) Size() (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(f.fd, &st); err != nil {
		return 0, fmt.Errorf("directio: fstat: %w", err)
	}
	return st.Size, nil
}

// ReadAligned reads the file's full contents into buf in a single
// request at offset 0. size is the file's true size as returned by
// Size; buf must be a block-aligned buffer (see AlignedBuffer) of
// length at least RoundUp(size) when direct I/O is in effect, since
// O_DIRECT requires the whole request — offset, buffer address, and
// length alike — to be block-aligned, or at least size otherwise. It
// returns the true size on success: the caller-visible length is never
// the rounded-up figure.
//
// Unlike a buffered read, this never loops a short read forward to a
// later offset: under O_DIRECT only offset 0 and the rounded-up length
// are guaranteed aligned, so a second request at an arbitrary byte
// offset would itself fail with EINVAL. A regular file only returns
// fewer bytes than requested at EOF, which for a single whole-file
// request this never reaches short of actual I/O failure, so a
// sub-size result is treated as an error rather than retried.
func (f *File) ReadAligned(buf []byte, size int64) (int64, error) {
	want := size
	if f.direct {
		want = RoundUp(size)
	}
	if int64(len(buf)) < want {
		return 0, fmt.Errorf("directio: buffer too small: have %d, need %d", len(buf), want)
	}

	for {
		n, err := unix.Pread(f.fd, buf[:want], 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("directio: read: %w", err)
		}
		if int64(n) < size {
			return 0, fmt.Errorf("directio: short read: got %d bytes, want %d", n, size)
		}
		return size, nil
	}
}

// Close closes the underlying file descriptor.
func (f *File) Close() error {
	if err := unix.Close(f.fd); err != nil {
		return fmt.Errorf("directio: close: %w", err)
	}
	return nil
}
