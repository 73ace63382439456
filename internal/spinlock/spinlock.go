// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spinlock implements a short-critical-section spinlock.
//
// The original core uses pthread spinlocks rather than mutexes because
// pthread mutexes interact poorly with the host scripting runtime's
// global interpreter lock: a thread parked in a futex wait can starve
// the interpreter. A Go Mutex doesn't have that failure mode, but every
// critical section this package guards (a handful of array writes) is
// short enough that a spin-then-yield lock avoids a syscall-class park
// entirely, which matches the original design's intent. T must be
// usable as the zero value of a shared-memory word, so Lock never
// allocates.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// T is a single spinlock. The zero value is an unlocked lock. T must
// not be copied after first use: it is designed to live inline inside
// a shared-memory array element, addressed by pointer.
type T struct {
	state uint32
}

// Lock spins until the lock is acquired. After a bounded number of
// failed CAS attempts it calls runtime.Gosched to avoid pegging a core
// against a lock held by a descheduled goroutine.
func (l *T) Lock() {
	spins := 0
	for !atomic.CompareAndSwapUint32(&l.state, unlocked, locked) {
		spins++
		if spins > 64 {
			runtime.Gosched()
			spins = 0
		}
	}
}

// TryLock attempts to acquire the lock without spinning, returning
// false immediately if it is already held.
func (l *T) TryLock() bool {
	return atomic.CompareAndSwapUint32(&l.state, unlocked, locked)
}

// Unlock releases the lock. Unlocking an already-unlocked lock is a
// programming error and is not detected (the original core does not
// detect it either).
func (l *T) Unlock() {
	atomic.StoreUint32(&l.state, unlocked)
}
