// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import (
	"github.com/gustrain/mlcache/internal/payload"
)

// Store admits data under path directly, bypassing the read-through
// miss path entirely. It is the ABI entry point a caller uses to seed
// the cache with bytes it already has in hand, rather than letting
// Read pull them from a backing file on first access.
//
// Store does not touch the five read-path statistics counters; those
// are scoped to Read's accesses/hits/misses invariant, which Store
// never participates in.
func (c *Cache) Store(path string, data []byte) error {
	if PathLimitExceeded(path) {
		return ErrInvalid
	}
	switch c.store.Admit(path, data, int64(len(data))) {
	case payload.OK:
		return nil
	case payload.E2BIG:
		return ErrTooBig
	case payload.OutOfSpace:
		return ErrOutOfMemory
	case payload.IOError:
		return ErrIOError
	default:
		return ErrIOError
	}
}
