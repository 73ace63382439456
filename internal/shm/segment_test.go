// Copyright 2024 the mlcache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shm

import (
	"bytes"
	"fmt"
	"os"
	"testing"
)

func uniqueName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("/mlcache-test-%s-%d", t.Name(), os.Getpid())
}

func TestCreateOpenRoundTrip(t *testing.T) {
	name := uniqueName(t)
	defer Unlink(name)

	w, err := Create(name, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	copy(w.Data(), []byte("hello, segment!!"))
	if err := w.Unmap(); err != nil {
		t.Fatalf("Unmap writer: %v", err)
	}

	r, err := Open(name, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Unmap()

	if !bytes.Equal(r.Data(), []byte("hello, segment!!")) {
		t.Fatalf("got %q, want %q", r.Data(), "hello, segment!!")
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	name := uniqueName(t)
	defer Unlink(name)

	s1, err := Create(name, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s1.Unmap()

	if _, err := Create(name, 8); err == nil {
		t.Fatal("expected second Create of same name to fail")
	}
}

func TestUnlinkThenOpenFails(t *testing.T) {
	name := uniqueName(t)

	s, err := Create(name, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Unlink(name); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	defer s.Unmap()

	if _, err := Open(name, 8); err == nil {
		t.Fatal("expected Open after Unlink to fail")
	}
}
