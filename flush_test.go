// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import "testing"

func TestFlushRemovesEntriesButKeepsStats(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	path := uniquePath(t, "flushme")
	if err := c.Store(path, []byte("payload")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	buf := make([]byte, 16)
	if _, err := c.Load(path, buf); err != nil {
		t.Fatalf("Load before Flush: %v", err)
	}

	before := c.Stats()

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if c.Contains(path) {
		t.Fatal("expected Contains false after Flush")
	}

	after := c.Stats()
	if after != before {
		t.Fatalf("Stats changed across Flush: before=%+v after=%+v", before, after)
	}
}

func TestFlushThenReadmitSamePath(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	path := uniquePath(t, "reuse")
	if err := c.Store(path, []byte("one")); err != nil {
		t.Fatalf("first Store: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := c.Store(path, []byte("two!!")); err != nil {
		t.Fatalf("Store after Flush: %v", err)
	}

	buf := make([]byte, 16)
	n, err := c.Load(path, buf)
	if err != nil {
		t.Fatalf("Load after readmit: %v", err)
	}
	if string(buf[:n]) != "two!!" {
		t.Fatalf("Load bytes = %q, want %q", buf[:n], "two!!")
	}
}
