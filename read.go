// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import (
	"sync/atomic"

	"github.com/gustrain/mlcache/internal/directio"
	"github.com/gustrain/mlcache/internal/payload"
)

// Read is the cache's read-through entry point: it first tries the
// cache, and on a miss opens path directly (O_DIRECT where the
// backing filesystem allows it), copies the bytes into buf, and
// attempts to admit them for the next caller before returning.
//
// Every call increments Accesses exactly once. Exactly one of Hits,
// ColdMisses, CapacityMisses, or Fails is incremented for every call
// that reaches a terminal outcome, preserving the invariant
// Hits+ColdMisses+CapacityMisses+Fails == Accesses — except the one
// case noted below, which matches the documented behavior of the
// system this package implements: a buffer too small for an
// already-cached entry returns ErrInvalid without incrementing any
// counter, since it reflects a caller error, not an outcome of the
// cache's own admission or retrieval logic.
func (c *Cache) Read(path string, buf []byte) (int64, error) {
	atomic.AddInt64(c.stats.accesses, 1)

	n, result, err := c.store.Load(path, buf, int64(len(buf)))
	if err != nil {
		// The entry was present but its payload segment could not be
		// opened or mapped: a corrupted or concurrently-flushed
		// segment, not an unreachable backing file. Still a failed
		// access, so it counts toward Fails like any other terminal
		// failure, but the caller gets a Status sentinel rather than
		// payload's raw wrapped error.
		atomic.AddInt64(c.stats.fails, 1)
		return 0, ErrIOError
	}
	switch result {
	case payload.Found:
		atomic.AddInt64(c.stats.hits, 1)
		return n, nil
	case payload.TooLarge:
		return 0, ErrInvalid
	}

	f, err := directio.Open(path)
	if err != nil {
		atomic.AddInt64(c.stats.fails, 1)
		return 0, ErrNotFound
	}
	defer f.Close()

	size, err := f.Size()
	if err != nil {
		atomic.AddInt64(c.stats.fails, 1)
		return 0, ErrNotFound
	}
	if size == 0 {
		atomic.AddInt64(c.stats.fails, 1)
		return 0, ErrInvalid
	}
	if size > int64(len(buf)) {
		atomic.AddInt64(c.stats.fails, 1)
		return 0, ErrInvalid
	}

	aligned := directio.AlignedBuffer(directio.RoundUp(size))
	if _, err := f.ReadAligned(aligned, size); err != nil {
		atomic.AddInt64(c.stats.fails, 1)
		return 0, ErrIOError
	}
	copy(buf, aligned[:size])

	switch c.store.Admit(path, aligned[:size], size) {
	case payload.OK:
		atomic.AddInt64(c.stats.coldMisses, 1)
	default:
		atomic.AddInt64(c.stats.capacityMisses, 1)
	}

	return size, nil
}
