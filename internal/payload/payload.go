// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package payload implements admission (Store) and retrieval (Load)
// of cached file bytes. Bytes live in named shared-memory segments,
// one per entry, rather than one large contiguous arena: the latest
// revision of the original core made this trade deliberately, to
// avoid pre-touching the full capacity up front and to let the OS
// lazily materialize pages, at the cost of a file descriptor and a
// name per admitted entry.
package payload

import (
	"fmt"

	"github.com/gustrain/mlcache/internal/directory"
	"github.com/gustrain/mlcache/internal/entrytable"
	"github.com/gustrain/mlcache/internal/shm"
)

// Outcome distinguishes the ways Store can fail without admitting, so
// the read-through engine can map each one to the right statistic and
// the right public error.
type Outcome int

const (
	// OK means the item was admitted.
	OK Outcome = iota
	// E2BIG means size exceeded the configured max item size.
	E2BIG
	// OutOfSpace means the entry table or the byte budget was
	// exhausted, or the path is too long to fit an entry record.
	OutOfSpace
	// IOError means the shared-memory segment could not be created.
	IOError
)

// Store is the admission/retrieval engine wired to a single entry
// table + directory pair. It holds no lock of its own: every critical
// section is delegated to the directory's spinlock or an entry's
// bucket spinlock, per the design's lock-ordering rule (directory,
// then bucket, never the reverse).
type Store struct {
	table       *entrytable.Table
	dir         *directory.Directory
	maxItemSize int64 // 0 = unlimited
}

// New wires a Store to the given table and directory. maxItemSize is
// the "M" from the design (0 = unlimited).
func New(table *entrytable.Table, dir *directory.Directory, maxItemSize int64) *Store {
	return &Store{table: table, dir: dir, maxItemSize: maxItemSize}
}

// Admit stores data (size bytes) under path. On success the entry is
// visible in the directory before Admit returns. On any failure the
// reserved entry slot, if one was taken, is permanently wasted until
// the next Reset — this is the documented cost of keeping admission
// lock-free (see entrytable's ReserveSlot doc).
func (s *Store) Admit(path string, data []byte, size int64) Outcome {
	if s.maxItemSize > 0 && size > s.maxItemSize {
		return E2BIG
	}

	idx, err := s.table.ReserveSlot()
	if err != nil {
		return OutOfSpace
	}

	if _, err := s.table.ReserveBytes(size); err != nil {
		return OutOfSpace
	}

	if err := s.table.Init(idx, path, size); err != nil {
		return OutOfSpace
	}

	name := entrytable.SegmentName(path)
	seg, err := shm.Create(name, size)
	if err != nil {
		return IOError
	}
	copy(seg.Data(), data[:size])
	if err := seg.Unmap(); err != nil {
		return IOError
	}

	s.dir.Lock()
	s.dir.InsertLocked(path, idx)
	s.dir.Unlock()

	return OK
}

// LoadResult distinguishes Load's three outcomes.
type LoadResult int

const (
	// Found means outSize and outBuf[:outSize] are valid.
	Found LoadResult = iota
	// Miss means no directory entry exists for path.
	Miss
	// TooLarge means the cached entry exceeds the caller's buffer.
	TooLarge
)

// Load looks up path and, if present and it fits within max, copies
// its bytes into outBuf and returns Found with the entry's true size.
//
// The directory-lock-to-bucket-lock hand-off happens here: the
// directory lock is held only long enough to resolve path to a slot
// index, then the slot's bucket lock is taken before the directory
// lock is released. That overlap is what prevents a concurrent Flush
// from unmapping the segment between the lookup and the copy.
func (s *Store) Load(path string, outBuf []byte, max int64) (outSize int64, result LoadResult, err error) {
	s.dir.Lock()
	idx, ok := s.dir.LookupLocked(path)
	if !ok {
		s.dir.Unlock()
		return 0, Miss, nil
	}
	bl := s.table.BucketLock(idx)
	bl.Lock()
	s.dir.Unlock()
	defer bl.Unlock()

	rec := s.table.Get(idx)
	if rec.Size() > max {
		return 0, TooLarge, nil
	}

	name := entrytable.SegmentName(rec.Path())
	seg, err := shm.Open(name, rec.Size())
	if err != nil {
		return 0, Found, fmt.Errorf("payload: open %q for load: %w", name, err)
	}
	defer seg.Unmap()

	n := copy(outBuf, seg.Data())
	return int64(n), Found, nil
}

// Contains reports whether path has a live directory entry.
func (s *Store) Contains(path string) bool {
	return s.dir.Contains(path)
}

// Stat returns the size of an admitted entry without copying its
// payload, or ok=false if path is not present.
func (s *Store) Stat(path string) (size int64, ok bool) {
	idx, found := s.dir.Lookup(path)
	if !found {
		return 0, false
	}
	return s.table.Get(idx).Size(), true
}

// Flush unlinks every admitted entry's payload segment (Admit and Load
// unmap their views before returning, so none is left mapped) and
// clears the directory. Not safe to call concurrently with Admit or
// Load; the caller must serialize it against all cache traffic.
func (s *Store) Flush() error {
	s.dir.Lock()
	defer s.dir.Unlock()

	n := s.table.NEntries()
	if n > s.table.NMax() {
		n = s.table.NMax()
	}
	for i := int64(0); i < n; i++ {
		rec := s.table.Get(i)
		path := rec.Path()
		if path == "" {
			// A slot wasted by a lost capacity race: reserved but
			// never initialized, so it has no segment to remove.
			continue
		}
		if err := shm.Unlink(entrytable.SegmentName(path)); err != nil {
			return fmt.Errorf("payload: flush: %w", err)
		}
	}
	s.dir.ResetLocked()
	s.table.Reset()
	return nil
}

// Destroy performs the same steps as Flush; it does not release the
// table's memory, which belongs to the caller's allocator. Callers
// that are tearing the whole cache down call this instead of Flush so
// that "no one else may still be attached" is explicit at the call
// site.
func (s *Store) Destroy() error {
	return s.Flush()
}
