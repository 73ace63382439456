// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mlcache is a read-through, process-shared file cache for
// machine-learning data loaders.
//
// A Cache is a single object backed by anonymous shared memory so that
// a parent process and its forked worker children all observe the same
// admitted entries: a file fetched by one worker becomes a hot hit for
// every sibling, without duplicating bytes. The cache never evicts —
// see the "MinIO" admission policy, PolicyMinIO — so its
// steady-state hit rate is determined by which files win the admission
// race during the first pass over a dataset.
//
// Create the Cache before forking worker processes; see New.
package mlcache
