// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package directory implements the cache's path → entry-slot hash
// index. It is deliberately thin: it never dereferences an entry's
// payload, it only ever maps a path to a stable integer slot index.
// Per-entry payload mapping is guarded separately (see
// internal/payload) by a bucket lock taken in hand-off from this
// directory's lock, never the other way around — this package does
// not know about bucket locks at all, to make that lock ordering
// impossible to get backwards by construction.
//
// Like internal/entrytable, the slot array is a fixed-capacity,
// pointer-free structure carved out of shared memory with
// unsafe.Slice, open-addressed with linear probing instead of Go's
// map[string]int64 so that the index itself — not just the bytes it
// eventually points at — is visible to a forked sibling process. There
// is no delete: flush is the only removal, exactly as spec'd, which is
// what makes linear probing safe here (a table with deletes needs
// tombstones or backward-shift deletion; one without them doesn't).
package directory

import (
	"fmt"
	"unsafe"

	"github.com/gustrain/mlcache/internal/shm"
	"github.com/gustrain/mlcache/internal/spinlock"
)

const maxPathBytes = 127

type slot struct {
	occupied int32
	pathLen  int32
	path     [maxPathBytes]byte
	idx      int64
}

func (s *slot) matches(path string) bool {
	return s.occupied != 0 && int(s.pathLen) == len(path) && string(s.path[:s.pathLen]) == path
}

// Directory maps path to entry-table slot index behind a single
// short-critical-section spinlock. It supports only lookup and
// insert; there is no per-key delete; the whole index is cleared at
// once by Reset (flush).
type Directory struct {
	mu    *spinlock.T
	slots []slot
	mask  uint64
}

// EstimateBytes returns the number of allocator bytes New will
// consume for a directory sized for capacityHint entries, so a caller
// assembling a single up-front shm.Allocator for several components
// can size it without reaching into this package's unexported layout.
func EstimateBytes(capacityHint int64) int64 {
	if capacityHint < 1 {
		capacityHint = 1
	}
	n := nextPow2(capacityHint * 4)
	return int64(unsafe.Sizeof(spinlock.T{})) + n*int64(unsafe.Sizeof(slot{}))
}

// New carves a Directory with room for at least capacityHint entries
// out of alloc. The underlying table is sized to the next power of
// two at least 4x capacityHint to keep linear-probe chains short at
// the load factors the cache actually reaches (NMax admissions into a
// table that size never exceeds ~25% occupancy).
func New(alloc *shm.Allocator, capacityHint int64) (*Directory, error) {
	if capacityHint < 1 {
		capacityHint = 1
	}
	n := nextPow2(capacityHint * 4)

	lockBytes := alloc.Alloc(int(unsafe.Sizeof(spinlock.T{})))
	if lockBytes == nil {
		return nil, fmt.Errorf("directory: allocator exhausted for lock")
	}
	slotBytes := alloc.Alloc(int(n) * int(unsafe.Sizeof(slot{})))
	if slotBytes == nil {
		return nil, fmt.Errorf("directory: allocator exhausted for %d slots", n)
	}

	mu := (*spinlock.T)(unsafe.Pointer(&lockBytes[0]))
	slots := unsafe.Slice((*slot)(unsafe.Pointer(&slotBytes[0])), n)

	return &Directory{mu: mu, slots: slots, mask: uint64(n - 1)}, nil
}

func nextPow2(n int64) int64 {
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// fnv1a hashes path for initial-probe placement.
func fnv1a(path string) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for i := 0; i < len(path); i++ {
		h ^= uint64(path[i])
		h *= prime
	}
	return h
}

// Lookup takes the directory spinlock, performs the hash lookup, and
// releases it. ok is false if path has no entry.
func (d *Directory) Lookup(path string) (idx int64, ok bool) {
	d.mu.Lock()
	idx, ok = d.LookupLocked(path)
	d.mu.Unlock()
	return idx, ok
}

// LookupLocked is Lookup without acquiring the lock; the caller must
// already hold it via Lock.
func (d *Directory) LookupLocked(path string) (int64, bool) {
	i := fnv1a(path) & d.mask
	for probes := uint64(0); probes <= d.mask; probes++ {
		s := &d.slots[i]
		if s.occupied == 0 {
			return 0, false
		}
		if s.matches(path) {
			return s.idx, true
		}
		i = (i + 1) & d.mask
	}
	return 0, false
}

// Insert takes the directory spinlock, inserts path → idx, and
// releases it. The caller must guarantee path is not already present;
// Insert does not check, matching the "caller guarantees each key
// admitted at most once" invariant.
func (d *Directory) Insert(path string, idx int64) {
	d.mu.Lock()
	d.InsertLocked(path, idx)
	d.mu.Unlock()
}

// InsertLocked is Insert without acquiring the lock; the caller must
// already hold it via Lock.
func (d *Directory) InsertLocked(path string, idx int64) {
	i := fnv1a(path) & d.mask
	for {
		s := &d.slots[i]
		if s.occupied == 0 {
			s.pathLen = int32(copy(s.path[:], path))
			s.idx = idx
			s.occupied = 1
			return
		}
		i = (i + 1) & d.mask
	}
}

// Contains reports whether path currently has a directory entry.
func (d *Directory) Contains(path string) bool {
	_, ok := d.Lookup(path)
	return ok
}

// Len reports the number of live directory entries. It is O(capacity),
// intended for tests and diagnostics, not the hot path.
func (d *Directory) Len() int {
	d.mu.Lock()
	n := 0
	for i := range d.slots {
		if d.slots[i].occupied != 0 {
			n++
		}
	}
	d.mu.Unlock()
	return n
}

// Lock acquires the directory spinlock without performing a lookup.
// payload's Admit uses this to hold the directory lock around the
// InsertLocked that publishes a slot, and its Load holds it across the
// hand-off to a bucket lock.
func (d *Directory) Lock() { d.mu.Lock() }

// Unlock releases the directory spinlock acquired by Lock.
func (d *Directory) Unlock() { d.mu.Unlock() }

// Reset clears every entry. Called only by Flush, which the cache
// contract requires the caller to serialize against all other
// traffic.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.ResetLocked()
	d.mu.Unlock()
}

// ResetLocked is Reset without acquiring the lock; the caller must
// already hold it via Lock.
func (d *Directory) ResetLocked() {
	for i := range d.slots {
		d.slots[i] = slot{}
	}
}
