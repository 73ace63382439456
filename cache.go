// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import (
	"fmt"

	"github.com/gustrain/mlcache/internal/directory"
	"github.com/gustrain/mlcache/internal/entrytable"
	"github.com/gustrain/mlcache/internal/payload"
	"github.com/gustrain/mlcache/internal/shm"
)

// Cache is a read-through file cache shared across a process and any
// workers it forks after calling New. Every field below that holds
// state is backed by a single anonymous shared-memory region obtained
// from internal/shm, so forked siblings observe one cache, not one
// copy each.
//
// A Cache must be created before the owning process forks worker
// children; see package doc.
type Cache struct {
	cfg   resolved
	alloc *shm.Allocator
	table *entrytable.Table
	dir   *directory.Directory
	store *payload.Store
	stats *statCounters
}

// allocatorSlack covers alignment padding the bump allocator may
// introduce between components; it's cheap relative to the capacity
// byte budget itself.
const allocatorSlack = 4096

// New validates cfg, computes N_max = (2*Capacity)/AvgItemSize, and
// constructs a Cache over a freshly allocated, page-locked shared
// memory region sized to hold the entry table, the directory, and the
// statistics counters. Fork any worker processes only after New
// returns.
func New(cfg Config) (*Cache, error) {
	r, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	total := entrytable.EstimateBytes(r.nMax) +
		directory.EstimateBytes(r.nMax) +
		statCountersBytes +
		allocatorSlack

	alloc, err := shm.New(int(total))
	if err != nil {
		return nil, fmt.Errorf("mlcache: allocate shared region: %w", err)
	}

	table, err := entrytable.New(alloc, r.nMax, r.capacity)
	if err != nil {
		alloc.Close()
		return nil, fmt.Errorf("mlcache: build entry table: %w", err)
	}

	dir, err := directory.New(alloc, r.nMax)
	if err != nil {
		alloc.Close()
		return nil, fmt.Errorf("mlcache: build directory: %w", err)
	}

	statRegion := alloc.Alloc(statCountersBytes)
	if statRegion == nil {
		alloc.Close()
		return nil, fmt.Errorf("mlcache: allocate statistics counters: %w", err)
	}

	return &Cache{
		cfg:   r,
		alloc: alloc,
		table: table,
		dir:   dir,
		store: payload.New(table, dir, r.maxItemSize),
		stats: newStatCounters(statRegion),
	}, nil
}

// Contains reports whether path has a live, admitted entry. It takes
// the directory spinlock internally, matching the design's
// requirement that contains() be spinlock-protected under concurrent
// admission (an earlier, lock-free revision of the original core was
// incorrect under that condition).
func (c *Cache) Contains(path string) bool {
	return c.store.Contains(path)
}

// ContainsStat is Contains extended to also report the entry's size
// when present, so a caller can size a Load buffer without a second
// directory probe.
func (c *Cache) ContainsStat(path string) (size int64, ok bool) {
	return c.store.Stat(path)
}

// PathLimitExceeded reports whether path would be rejected for
// exceeding the 128-byte (including terminator) path bound enforced
// at admission. Exposed so a binding layer can validate a path before
// calling Store or relying on Read's admission side effect, instead
// of discovering truncation after the fact.
func PathLimitExceeded(path string) bool {
	return entrytable.PathLimitExceeded(path)
}

// Destroy unlinks every payload segment, clears the directory, and
// releases the cache's shared memory region. Safe only when no other
// process still holds the cache attached.
func (c *Cache) Destroy() error {
	if err := c.store.Destroy(); err != nil {
		return err
	}
	return c.alloc.Close()
}
