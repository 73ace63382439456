// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// shmDir is where named segments live. Linux backs /dev/shm with
// tmpfs, so opening a file there is equivalent to POSIX shm_open: any
// process that knows the name can open and map the same pages, fork
// relationship or not. This is what lets payload segments be
// attachable by name instead of only by fork inheritance (contrast
// with Allocator, whose anonymous mapping is fork-inherited only).
const shmDir = "/dev/shm"

// Segment is a named, file-backed shared-memory region.
type Segment struct {
	name string
	fd   int
	data []byte
}

// pathFor returns the /dev/shm path for a payload segment name. name
// is expected to already carry the "/"-prefixed, "/"-replaced form
// described in the payload-naming rule; pathFor just resolves it
// against shmDir.
func pathFor(name string) string {
	return shmDir + name
}

// Create creates a new named segment of the given size and maps it
// read-write. It fails if a segment of that name already exists. The
// segment is visible to any process that opens the same name, not just
// fork descendants.
func Create(name string, size int64) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: segment size must be > 0, got %d", size)
	}

	f, err := os.OpenFile(pathFor(name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: create segment %q: %w", name, err)
	}
	defer f.Close()

	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		os.Remove(pathFor(name))
		return nil, fmt.Errorf("shm: dup segment fd %q: %w", name, err)
	}

	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		os.Remove(pathFor(name))
		return nil, fmt.Errorf("shm: truncate segment %q to %d: %w", name, size, err)
	}
	// Best-effort: ask the filesystem to back the whole range now so
	// the admitting writer doesn't take sparse-file page faults one
	// at a time while copying the payload in.
	_ = unix.Fallocate(fd, 0, 0, size)

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		os.Remove(pathFor(name))
		return nil, fmt.Errorf("shm: mmap segment %q: %w", name, err)
	}

	return &Segment{name: name, fd: fd, data: data}, nil
}

// Open maps an existing named segment read-only, for a reader that
// did not admit the entry itself.
func Open(name string, size int64) (*Segment, error) {
	fd, err := unix.Open(pathFor(name), unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open segment %q: %w", name, err)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: mmap segment %q: %w", name, err)
	}

	return &Segment{name: name, fd: fd, data: data}, nil
}

// Data returns the mapped bytes.
func (s *Segment) Data() []byte { return s.data }

// Unmap unmaps this process's view of the segment without unlinking
// the underlying name; other processes that have it open are
// unaffected.
func (s *Segment) Unmap() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := unix.Close(s.fd); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("shm: unmap segment %q: %w", s.name, err)
	}
	return nil
}

// Unlink removes the name from /dev/shm. Existing mappings (including
// this process's, if still mapped) remain valid until unmapped; new
// Open calls will fail once Unlink has run.
func Unlink(name string) error {
	if err := os.Remove(pathFor(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shm: unlink segment %q: %w", name, err)
	}
	return nil
}
