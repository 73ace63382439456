// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import (
	"bytes"
	"fmt"
	"os"
	"testing"
)

func uniquePath(t *testing.T, suffix string) string {
	t.Helper()
	return fmt.Sprintf("cache-test-%s-%d-%s", t.Name(), os.Getpid(), suffix)
}

func TestStoreThenLoadRoundTrip(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	path := uniquePath(t, "a")
	data := []byte("hello from the store path")
	if err := c.Store(path, data); err != nil {
		t.Fatalf("Store: %v", err)
	}

	buf := make([]byte, 64)
	n, err := c.Load(path, buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(buf[:n], data) {
		t.Fatalf("Load bytes = %q, want %q", buf[:n], data)
	}
}

func TestStoreRejectsOversizeItem(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20, MaxItemSize: 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	path := uniquePath(t, "big")
	data := bytes.Repeat([]byte("x"), 32)
	if err := c.Store(path, data); err != ErrTooBig {
		t.Fatalf("Store error = %v, want ErrTooBig", err)
	}
	if c.Contains(path) {
		t.Fatal("rejected item must not be visible")
	}
}

func TestStoreRejectsOverCapacity(t *testing.T) {
	c, err := New(Config{Capacity: 100, AvgItemSize: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	path1 := uniquePath(t, "c1")
	path2 := uniquePath(t, "c2")

	if err := c.Store(path1, bytes.Repeat([]byte("a"), 80)); err != nil {
		t.Fatalf("first Store: %v", err)
	}
	if err := c.Store(path2, bytes.Repeat([]byte("b"), 80)); err != ErrOutOfMemory {
		t.Fatalf("second Store error = %v, want ErrOutOfMemory", err)
	}
}

func TestStoreRejectsOverlongPath(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	long := bytes.Repeat([]byte("p"), 200)
	if err := c.Store(string(long), []byte("x")); err != ErrInvalid {
		t.Fatalf("Store error = %v, want ErrInvalid", err)
	}
}
