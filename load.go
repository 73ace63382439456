// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import (
	"github.com/gustrain/mlcache/internal/payload"
)

// Load copies path's cached bytes into buf without ever touching a
// backing file, returning the entry's true size. Unlike Read, Load
// does not admit on miss; it is a pure directory+payload lookup,
// useful to a caller that already knows an entry was admitted (e.g.
// just after its own Store call) and wants to avoid a second attempt
// at a backing-file open.
//
// Load does not touch the read-path statistics counters; see Read for
// the path that does.
func (c *Cache) Load(path string, buf []byte) (int64, error) {
	n, result, err := c.store.Load(path, buf, int64(len(buf)))
	if err != nil {
		return 0, ErrIOError
	}
	switch result {
	case payload.Found:
		return n, nil
	case payload.Miss:
		return 0, ErrMiss
	case payload.TooLarge:
		return 0, ErrTooLarge
	default:
		return 0, ErrInvalid
	}
}
