// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import (
	"sync/atomic"
	"unsafe"
)

// statCounters are the five atomic counters from §3 of the design,
// carved out of the Cache's shm.Allocator so every attached process —
// not just the one that called New — observes the same running
// totals. They are kept with relaxed atomic adds; their sum across
// concurrent accessors is eventually consistent, per the design's
// concurrency model.
type statCounters struct {
	accesses       *int64
	hits           *int64
	coldMisses     *int64
	capacityMisses *int64
	fails          *int64
}

// statCountersBytes is the number of allocator bytes newStatCounters
// consumes.
const statCountersBytes = 5 * 8

func newStatCounters(region []byte) *statCounters {
	return &statCounters{
		accesses:       (*int64)(unsafe.Pointer(&region[0])),
		hits:           (*int64)(unsafe.Pointer(&region[8])),
		coldMisses:     (*int64)(unsafe.Pointer(&region[16])),
		capacityMisses: (*int64)(unsafe.Pointer(&region[24])),
		fails:          (*int64)(unsafe.Pointer(&region[32])),
	}
}

// Stats is a point-in-time snapshot of a Cache's counters.
type Stats struct {
	Accesses       int64
	Hits           int64
	ColdMisses     int64
	CapacityMisses int64
	Fails          int64
}

// Stats returns a snapshot of the cache's counters. Flush does not
// reset these; they accumulate for the lifetime of the Cache.
func (c *Cache) Stats() Stats {
	return Stats{
		Accesses:       atomic.LoadInt64(c.stats.accesses),
		Hits:           atomic.LoadInt64(c.stats.hits),
		ColdMisses:     atomic.LoadInt64(c.stats.coldMisses),
		CapacityMisses: atomic.LoadInt64(c.stats.capacityMisses),
		Fails:          atomic.LoadInt64(c.stats.fails),
	}
}
