// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mlcache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeBackingFile(t *testing.T, contents []byte) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(p, contents, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestReadColdThenHot(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	contents := []byte("bytes read straight off disk")
	path := writeBackingFile(t, contents)

	buf := make([]byte, 4096)
	n, err := c.Read(path, buf)
	if err != nil {
		t.Fatalf("cold Read: %v", err)
	}
	if !bytes.Equal(buf[:n], contents) {
		t.Fatalf("cold Read bytes = %q, want %q", buf[:n], contents)
	}
	if !c.Contains(path) {
		t.Fatal("expected path admitted after cold Read")
	}

	stats := c.Stats()
	if stats.Accesses != 1 || stats.ColdMisses != 1 || stats.Hits != 0 {
		t.Fatalf("stats after cold Read = %+v, want Accesses=1 ColdMisses=1", stats)
	}

	n2, err := c.Read(path, buf)
	if err != nil {
		t.Fatalf("hot Read: %v", err)
	}
	if !bytes.Equal(buf[:n2], contents) {
		t.Fatalf("hot Read bytes = %q, want %q", buf[:n2], contents)
	}

	stats = c.Stats()
	if stats.Accesses != 2 || stats.Hits != 1 || stats.ColdMisses != 1 {
		t.Fatalf("stats after hot Read = %+v, want Accesses=2 Hits=1 ColdMisses=1", stats)
	}
}

func TestReadZeroLengthFileIsInvalid(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	path := writeBackingFile(t, nil)

	buf := make([]byte, 16)
	if _, err := c.Read(path, buf); err != ErrInvalid {
		t.Fatalf("Read error = %v, want ErrInvalid", err)
	}
	if c.Contains(path) {
		t.Fatal("zero-length file must not be admitted")
	}

	stats := c.Stats()
	if stats.Accesses != 1 || stats.Fails != 1 {
		t.Fatalf("stats after zero-length Read = %+v, want Accesses=1 Fails=1", stats)
	}
}

func TestReadMissingFileIncrementsFails(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	buf := make([]byte, 16)
	if _, err := c.Read(filepath.Join(t.TempDir(), "absent"), buf); err != ErrNotFound {
		t.Fatalf("Read error = %v, want ErrNotFound", err)
	}

	stats := c.Stats()
	if stats.Accesses != 1 || stats.Fails != 1 {
		t.Fatalf("stats after missing-file Read = %+v, want Accesses=1 Fails=1", stats)
	}
}

func TestReadOversizeForBufferReturnsInvalidAndCountsFail(t *testing.T) {
	c, err := New(Config{Capacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	path := writeBackingFile(t, bytes.Repeat([]byte("q"), 1024))

	buf := make([]byte, 16)
	if _, err := c.Read(path, buf); err != ErrInvalid {
		t.Fatalf("Read error = %v, want ErrInvalid", err)
	}

	stats := c.Stats()
	if stats != (Stats{Accesses: 1, Fails: 1}) {
		t.Fatalf("stats after oversize-buffer Read = %+v, want Accesses=1 Fails=1", stats)
	}
}

func TestReadCapacityMissWhenAdmissionFails(t *testing.T) {
	c, err := New(Config{Capacity: 64, AvgItemSize: 1, MaxItemSize: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Destroy()

	seed := writeBackingFile(t, bytes.Repeat([]byte("a"), 64))
	buf := make([]byte, 4096)
	if _, err := c.Read(seed, buf); err != nil {
		t.Fatalf("seed Read: %v", err)
	}

	over := writeBackingFile(t, bytes.Repeat([]byte("b"), 64))
	if _, err := c.Read(over, buf); err != nil {
		t.Fatalf("over-capacity Read: %v", err)
	}

	stats := c.Stats()
	if stats.CapacityMisses != 1 {
		t.Fatalf("CapacityMisses = %d, want 1", stats.CapacityMisses)
	}
	if c.Contains(over) {
		t.Fatal("capacity-refused path must not be visible after Read")
	}
}
