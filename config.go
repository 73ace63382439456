// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import "fmt"

// Policy names a replacement policy tag, carried for source-code
// parity with the original core (see §4.2 of the design). Only
// PolicyMinIO is implemented; PolicyFIFO is a defined value that New
// rejects.
type Policy int

const (
	// PolicyMinIO never evicts: an item is admitted on cold miss iff
	// it fits under MaxItemSize and the remaining byte budget.
	PolicyMinIO Policy = iota

	// PolicyFIFO is defined for source parity only. New returns
	// ErrFIFOUnsupported if it is requested.
	PolicyFIFO
)

func (p Policy) String() string {
	switch p {
	case PolicyMinIO:
		return "MinIO"
	case PolicyFIFO:
		return "FIFO"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// defaultAvgItemSize is substituted whenever Config.AvgItemSize is 0;
// it is used only to size the entry table.
const defaultAvgItemSize = 100 * 1024

// Config holds the parameters fixed at Cache creation time. None of
// these change over the life of a Cache; Flush resets usage counters,
// not configuration.
type Config struct {
	// Capacity is the total number of payload bytes the cache will
	// admit before every subsequent admission becomes a capacity
	// miss. Required, must be > 0.
	Capacity int64

	// MaxItemSize is the largest single file the cache will admit.
	// Zero means unlimited.
	MaxItemSize int64

	// AvgItemSize is used only to size the entry table
	// (NMax = 2*Capacity/AvgItemSize). Zero means
	// defaultAvgItemSize (100 KiB).
	AvgItemSize int64

	// Policy selects the admission/replacement policy. Only
	// PolicyMinIO is implemented.
	Policy Policy
}

// resolved is the validated, defaulted form of Config used internally.
type resolved struct {
	capacity    int64
	maxItemSize int64
	avgItemSize int64
	policy      Policy
	nMax        int64
}

func (c Config) resolve() (resolved, error) {
	if c.Capacity <= 0 {
		return resolved{}, fmt.Errorf("mlcache: Capacity must be > 0, got %d", c.Capacity)
	}
	if c.MaxItemSize < 0 {
		return resolved{}, fmt.Errorf("mlcache: MaxItemSize must be >= 0, got %d", c.MaxItemSize)
	}
	if c.Policy == PolicyFIFO {
		return resolved{}, ErrFIFOUnsupported
	}
	if c.Policy != PolicyMinIO {
		return resolved{}, fmt.Errorf("mlcache: unknown policy %v", c.Policy)
	}

	avg := c.AvgItemSize
	if avg == 0 {
		avg = defaultAvgItemSize
	}
	if avg <= 0 {
		return resolved{}, fmt.Errorf("mlcache: AvgItemSize must be >= 0, got %d", c.AvgItemSize)
	}

	nMax := (2 * c.Capacity) / avg
	if nMax < 1 {
		nMax = 1
	}

	return resolved{
		capacity:    c.Capacity,
		maxItemSize: c.MaxItemSize,
		avgItemSize: avg,
		policy:      c.Policy,
		nMax:        nMax,
	}, nil
}
