// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shm wraps anonymous shared memory and named POSIX-style
// shared-memory segments. Every long-lived structure the cache owns
// (the entry table, the lock array, the directory's backing storage)
// is obtained from an Allocator so that a parent process and any
// children it forks after construction observe the same bytes.
package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Allocator hands out fixed-size regions of a single anonymous,
// page-populated, memory-locked mapping. Unlike a general-purpose
// heap, it never reclaims or compacts: every region lives for the
// lifetime of the Allocator, matching the cache's own append-only
// lifecycle (see the entry table and directory, which are sized once
// at construction and never reallocated).
//
// An Allocator must be created before the owning process forks; the
// MAP_SHARED|MAP_ANONYMOUS mapping beneath it is inherited by
// descendants as shared pages, not copy-on-write private pages.
type Allocator struct {
	base  []byte
	used  int
}

// New creates an Allocator backed by size bytes of anonymous shared
// memory. The region is populated (MAP_POPULATE) so the page faults
// happen here instead of being deferred to first touch by some
// arbitrary later caller, and it is mlock'd so the OS never pages it
// out from under the cache — a cache slower than storage is useless.
//
// If the pages cannot be locked, the provisional mapping is released
// and New returns an error.
func New(size int) (*Allocator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: size must be > 0, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap anonymous region: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("shm: mlock region: %w", err)
	}

	return &Allocator{base: data}, nil
}

// wordAlign is the alignment every Alloc call rounds its start offset
// up to. The cache carves *int64 counters and spinlock.T words out of
// Allocator regions all over the package; an unaligned word faults on
// arm64 and panics the race detector (and the Go spec) everywhere
// else. Rounding every allocation's start up to 8 bytes, rather than
// trusting each call site to pad its own odd-sized regions (a 4-byte
// spinlock.T, a 127-byte path array), makes every region Alloc returns
// safe to address as an int64 regardless of what was carved before it.
const wordAlign = 8

// Alloc carves off the next size bytes of the region, rounding the
// start forward to an 8-byte boundary, and returns them. It returns
// nil if the region is exhausted. Allocated regions are never
// individually freed; see Close.
func (a *Allocator) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	start := (a.used + wordAlign - 1) &^ (wordAlign - 1)
	if start+size > len(a.base) {
		return nil
	}
	region := a.base[start : start+size : start+size]
	a.used = start + size
	return region
}

// Cap returns the total size of the underlying mapping.
func (a *Allocator) Cap() int { return len(a.base) }

// Close unmaps the entire region. All slices previously returned by
// Alloc become invalid; callers must not touch them afterward.
func (a *Allocator) Close() error {
	if a.base == nil {
		return nil
	}
	err := unix.Munmap(a.base)
	a.base = nil
	a.used = 0
	if err != nil {
		return fmt.Errorf("shm: munmap region: %w", err)
	}
	return nil
}
