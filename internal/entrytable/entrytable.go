// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package entrytable implements the cache's sole storage for entry
// metadata: a fixed-capacity, bump-allocated array of Records plus the
// atomic counters that gate admission into it.
//
// Every field of Record is a fixed-size scalar or byte array rather
// than a Go string or slice, precisely so the whole array can be
// carved out of raw shared memory (via internal/shm) and addressed
// with unsafe.Slice: a Go string header is a pointer into this
// process's heap and means nothing to a sibling process sharing the
// same mapping, so it cannot appear in a structure that must be
// readable across a fork. This mirrors the "cache-line-aligned struct
// cast over an mmap'd region" pattern used for IPC message layouts
// elsewhere in the retrieval pack (a seqlock ring buffer over shared
// memory), adapted here to a single bump-allocated array instead of a
// ring.
//
// This also replaces the original core's raw-pointer-valued hash
// table entries with stable integer indices into this array: the
// directory (internal/directory) maps path to an index here, never to
// a pointer, which is the memory-safe substitute the design calls for
// in place of a macro-based C hash table holding raw pointers.
package entrytable

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/gustrain/mlcache/internal/shm"
	"github.com/gustrain/mlcache/internal/spinlock"
)

// maxPathBytes is the number of path bytes a Record can hold; the
// public ABI bound is 128 bytes including a terminator, so 127 bytes
// of path data.
const maxPathBytes = 127

// Record is a single entry's metadata, laid out for direct placement
// in shared memory: no pointers, no slices, no strings. Fields are
// written exactly once, by the admitting goroutine, before the
// directory insert publishes the slot; thereafter every field is
// read-only until the owning Table is reset by Flush.
type Record struct {
	pathLen  int32
	path     [maxPathBytes]byte
	size     int64
	bucketID int32
}

// Path decodes the record's stored path.
func (r *Record) Path() string {
	return string(r.path[:r.pathLen])
}

// Size returns the record's payload length in bytes.
func (r *Record) Size() int64 { return r.size }

// BucketID returns the index into the Table's lock array that guards
// this record's payload mapping.
func (r *Record) BucketID() int32 { return r.bucketID }

// SegmentName derives the payload segment name for path: a "/" prefix
// with every "/" in path replaced by "_". Injective over the caller's
// guaranteed-unique-per-epoch keys.
func SegmentName(path string) string {
	b := make([]byte, 0, len(path)+1)
	b = append(b, '/')
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			b = append(b, '_')
		} else {
			b = append(b, path[i])
		}
	}
	return string(b)
}

// PathLimitExceeded reports whether path would be rejected by Init for
// exceeding the 128-byte (including terminator) path bound. Exposed so
// a binding layer can validate a path before admission instead of
// discovering truncation after the fact.
func PathLimitExceeded(path string) bool {
	return len(path) > maxPathBytes
}

// ErrFull is returned by ReserveSlot and ReserveBytes when the
// corresponding counter has reached its cap.
var ErrFull = fmt.Errorf("entrytable: full")

// Table is the fixed-capacity entry array plus the two atomic
// counters ("n_entries" and "used") that gate admission into it, and
// the array of per-entry-bucket locks referenced by Record.BucketID.
// Every one of these lives in memory obtained from a shm.Allocator, so
// a process that forks after constructing a Table shares all of it
// with its children.
//
// A Table's capacity is fixed at construction and never changes;
// Reset only rewinds the counters, matching the "entry table memory
// and lock array are not reallocated" contract of Flush.
type Table struct {
	records  []Record
	locks    []spinlock.T
	nMax     int64
	byteCap  int64
	nEntries *int64
	used     *int64
}

// EstimateBytes returns the number of allocator bytes New will
// consume for a table sized for nMax entries, so a caller assembling a
// single up-front shm.Allocator for several components can size it
// without reaching into this package's unexported layout.
func EstimateBytes(nMax int64) int64 {
	if nMax < 1 {
		nMax = 1
	}
	l := nMax / 16
	if l < 8 {
		l = 8
	}
	return nMax*int64(unsafe.Sizeof(Record{})) + l*int64(unsafe.Sizeof(spinlock.T{})) + 16
}

// New carves a Table with room for nMax records and a byte budget of
// byteCap out of alloc. locks holds L = max(8, nMax/16) entries, per
// the design's rule for sizing the entry-bucket lock array.
func New(alloc *shm.Allocator, nMax, byteCap int64) (*Table, error) {
	if nMax < 1 {
		nMax = 1
	}
	l := nMax / 16
	if l < 8 {
		l = 8
	}

	recordBytes := alloc.Alloc(int(nMax) * int(unsafe.Sizeof(Record{})))
	if recordBytes == nil {
		return nil, fmt.Errorf("entrytable: allocator exhausted for %d records", nMax)
	}
	lockBytes := alloc.Alloc(int(l) * int(unsafe.Sizeof(spinlock.T{})))
	if lockBytes == nil {
		return nil, fmt.Errorf("entrytable: allocator exhausted for %d locks", l)
	}
	counterBytes := alloc.Alloc(2 * 8)
	if counterBytes == nil {
		return nil, fmt.Errorf("entrytable: allocator exhausted for counters")
	}

	records := unsafe.Slice((*Record)(unsafe.Pointer(&recordBytes[0])), nMax)
	locks := unsafe.Slice((*spinlock.T)(unsafe.Pointer(&lockBytes[0])), l)
	nEntries := (*int64)(unsafe.Pointer(&counterBytes[0]))
	used := (*int64)(unsafe.Pointer(&counterBytes[8]))

	return &Table{
		records:  records,
		locks:    locks,
		nMax:     nMax,
		byteCap:  byteCap,
		nEntries: nEntries,
		used:     used,
	}, nil
}

// NMax returns the entry table's fixed capacity.
func (t *Table) NMax() int64 { return t.nMax }

// NEntries returns the current value of the slot-reservation counter.
// This includes slots wasted by a lost capacity race (see
// ReserveSlot), so it is not the same as "number of visible entries".
func (t *Table) NEntries() int64 { return atomic.LoadInt64(t.nEntries) }

// Used returns the current value of the byte-reservation counter.
func (t *Table) Used() int64 { return atomic.LoadInt64(t.used) }

// ReserveSlot atomically bumps the slot counter and returns the index
// reserved for the caller. If the post-increment value exceeds nMax,
// the reservation is invalid and ErrFull is returned; the counter is
// deliberately NOT rolled back: this keeps admission lock-free at the
// cost of up to O(#failed admissions) wasted slots until the next
// Reset.
func (t *Table) ReserveSlot() (int64, error) {
	n := atomic.AddInt64(t.nEntries, 1)
	if n > t.nMax {
		return -1, ErrFull
	}
	idx := n - 1
	t.records[idx].bucketID = int32(uint64(idx) % uint64(len(t.locks)))
	return idx, nil
}

// ReserveBytes atomically bumps the byte counter by size and returns
// the offset reserved for the caller. Unlike ReserveSlot, a failed
// reservation IS rolled back (atomic subtract of size) because at
// this point nothing has been published to the directory yet; rolling
// back keeps Used() an accurate "bytes committed" count.
func (t *Table) ReserveBytes(size int64) (int64, error) {
	off := atomic.AddInt64(t.used, size) - size
	if off+size > t.byteCap {
		atomic.AddInt64(t.used, -size)
		return -1, ErrFull
	}
	return off, nil
}

// Init writes a slot's metadata. It must be called exactly once per
// slot, by the thread that reserved it, before the entry is inserted
// into the directory.
func (t *Table) Init(idx int64, path string, size int64) error {
	if len(path) > maxPathBytes {
		return fmt.Errorf("entrytable: path %q exceeds %d bytes", path, maxPathBytes)
	}
	r := &t.records[idx]
	r.pathLen = int32(copy(r.path[:], path))
	r.size = size
	return nil
}

// Get returns a pointer to the record at idx. Callers must not
// dereference it before the record has been published via the
// directory and must not mutate it.
func (t *Table) Get(idx int64) *Record {
	return &t.records[idx]
}

// BucketLock returns the spinlock guarding payload-mapping for idx's
// bucket. Multiple slots share a bucket lock (L < nMax in general);
// this is intentional — the lock protects payload existence against
// flush, not per-entry contents, so sharing it across several entries
// only costs a little extra contention, never correctness.
func (t *Table) BucketLock(idx int64) *spinlock.T {
	return &t.locks[t.records[idx].bucketID]
}

// Reset rewinds both counters to zero. The records and lock arrays
// are kept, not reallocated; stale Record contents are overwritten by
// the next Init call for that slot before anyone can observe them
// through the (also-cleared) directory.
func (t *Table) Reset() {
	atomic.StoreInt64(t.nEntries, 0)
	atomic.StoreInt64(t.used, 0)
}
