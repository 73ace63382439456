// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

// Status is a sentinel error type returned by every Cache operation,
// mirroring the negative-sentinel error taxonomy of the core this
// package implements. Callers compare against the package-level Err*
// values with errors.Is.
type Status struct {
	name string
}

func (s *Status) Error() string { return s.name }

// Sentinel statuses. Store, Load, and Read return one of these or nil.
// New, Flush, and Destroy may instead return a plain error describing
// a failed configuration check or system call.
var (
	// ErrNotFound is returned by Read when the backing file could not
	// be opened on a cache miss.
	ErrNotFound = &Status{"mlcache: not found"}

	// ErrInvalid is returned for a zero-size file, a file larger than
	// the caller's buffer, or any other malformed request.
	ErrInvalid = &Status{"mlcache: invalid"}

	// ErrTooLarge is returned by Load when the cached entry is larger
	// than the caller-supplied buffer.
	ErrTooLarge = &Status{"mlcache: entry too large for buffer"}

	// ErrMiss is returned by Load when no directory entry exists for
	// the requested path. It is not counted as a failure.
	ErrMiss = &Status{"mlcache: miss"}

	// ErrTooBig is returned by Store when size exceeds the
	// configured MaxItemSize.
	ErrTooBig = &Status{"mlcache: item exceeds max item size"}

	// ErrOutOfMemory is returned when the entry table or the byte
	// budget is exhausted.
	ErrOutOfMemory = &Status{"mlcache: out of memory"}

	// ErrIOError is returned when a shared-memory segment cannot be
	// created or mapped during admission, when a cached entry's segment
	// cannot be opened by Load or Read, or when Read fails to read the
	// backing file.
	ErrIOError = &Status{"mlcache: io error"}

	// ErrFIFOUnsupported is returned by New when the caller asks for
	// the FIFO replacement policy, which exists only for source-code
	// parity with the original C core and is never implemented.
	ErrFIFOUnsupported = &Status{"mlcache: FIFO policy is not implemented"}
)

// Is implements errors.Is support for wrapped sentinels.
func (s *Status) Is(target error) bool {
	t, ok := target.(*Status)
	return ok && t == s
}

var _ error = (*Status)(nil)
var _ interface{ Is(error) bool } = (*Status)(nil)
