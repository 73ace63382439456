// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

// Flush unlinks every admitted entry's payload segment (segments are
// not kept mapped between calls, so there is nothing to unmap) and
// clears the directory and entry table, returning the cache to the
// state New left it in. It does not reset the statistics counters;
// Accesses, Hits, and the miss counters accumulate for the Cache's
// whole lifetime, across any number of Flush calls.
//
// Flush is not safe to call concurrently with Read, Load, or Store;
// the caller must serialize it against all other cache traffic.
func (c *Cache) Flush() error {
	return c.store.Flush()
}
