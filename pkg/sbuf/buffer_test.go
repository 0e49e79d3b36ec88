// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbuf

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Construction
// ============================================================

func TestNew_MinimumSize(t *testing.T) {
	b := New(0)
	if b.Cap() != MinSize {
		t.Errorf("Cap() = %d, want %d", b.Cap(), MinSize)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	if got := b.CString(); !bytes.Equal(got, []byte{0}) {
		t.Errorf("CString() = %v, want [0]", got)
	}
}

func TestNew_Hint(t *testing.T) {
	b := New(128)
	if b.Cap() != 128 {
		t.Errorf("Cap() = %d, want 128", b.Cap())
	}
}

// ============================================================
// Appends
// ============================================================

func TestAppend_Mixed(t *testing.T) {
	b := New(0)
	b.AppendString(`{"a":`)
	b.AppendUint(4294967295)
	b.AppendString(`,"b":`)
	b.AppendInt(-12)
	b.AppendBytes([]byte("}"))

	if err := b.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	want := `{"a":4294967295,"b":-12}`
	if b.String() != want {
		t.Errorf("String() = %q, want %q", b.String(), want)
	}
	cs := b.CString()
	if cs[len(cs)-1] != 0 {
		t.Error("content must be NUL-terminated")
	}
}

func TestAppend_GrowthPreservesContent(t *testing.T) {
	b := New(16)
	first := "0123456789abcd" // 14 bytes + NUL fits in 16
	if !b.AppendString(first) {
		t.Fatalf("first append failed: %v", b.Err())
	}
	if b.Grows() != 0 {
		t.Fatalf("Grows() = %d before overflow, want 0", b.Grows())
	}

	if !b.AppendString("XYZ") {
		t.Fatalf("second append failed: %v", b.Err())
	}
	if b.Grows() != 1 {
		t.Errorf("Grows() = %d, want exactly 1", b.Grows())
	}
	if b.Cap() != 32 {
		t.Errorf("Cap() = %d, want doubled size 32", b.Cap())
	}
	if b.String() != first+"XYZ" {
		t.Errorf("content corrupted: %q", b.String())
	}

	b.Release()
	if !b.Released() {
		t.Error("Released() = false after Release")
	}
}

func TestAppend_GrowsToFitLargeAppend(t *testing.T) {
	b := New(16)
	big := strings.Repeat("x", 100)
	if !b.AppendString(big) {
		t.Fatalf("append failed: %v", b.Err())
	}
	if b.Grows() != 1 {
		t.Errorf("Grows() = %d, want 1", b.Grows())
	}
	if b.Cap() != 101 {
		t.Errorf("Cap() = %d, want exact fit 101", b.Cap())
	}
}

func TestAppendBuffer(t *testing.T) {
	src := New(0)
	src.AppendString("payload")

	dst := New(0)
	dst.AppendString("head:")
	if !dst.AppendBuffer(src) {
		t.Fatalf("AppendBuffer failed: %v", dst.Err())
	}
	if dst.String() != "head:payload" {
		t.Errorf("String() = %q", dst.String())
	}
	if src.String() != "payload" {
		t.Errorf("source modified: %q", src.String())
	}
}

// ============================================================
// Failures
// ============================================================

func TestAppend_LimitIsSticky(t *testing.T) {
	b := NewWithLimit(16, 32)
	b.AppendString("0123456789")
	before := b.String()

	if b.AppendString(strings.Repeat("y", 40)) {
		t.Fatal("append beyond limit should fail")
	}
	if !errors.Is(b.Err(), ErrLimit) {
		t.Errorf("Err() = %v, want ErrLimit", b.Err())
	}
	if b.String() != before {
		t.Errorf("content changed on failed append: %q", b.String())
	}

	// Later appends are no-ops, even small ones.
	if b.AppendString("z") {
		t.Error("append after failure should fail")
	}
	if b.String() != before {
		t.Errorf("content changed after failure: %q", b.String())
	}
}

func TestAppend_NULRejected(t *testing.T) {
	b := New(0)
	if b.AppendBytes([]byte{'a', 0, 'b'}) {
		t.Fatal("NUL content should be rejected")
	}
	if !errors.Is(b.Err(), ErrNUL) {
		t.Errorf("Err() = %v, want ErrNUL", b.Err())
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestAppend_AfterRelease(t *testing.T) {
	b := New(0)
	b.AppendString("abc")
	b.Release()
	b.Release()

	if b.AppendString("d") {
		t.Fatal("append after release should fail")
	}
	if !errors.Is(b.Err(), ErrReleased) {
		t.Errorf("Err() = %v, want ErrReleased", b.Err())
	}
	if b.Bytes() != nil {
		t.Error("Bytes() should be nil after release")
	}
}

func TestAppendBuffer_ReleasedSource(t *testing.T) {
	src := New(0)
	src.Release()

	dst := New(0)
	if dst.AppendBuffer(src) {
		t.Fatal("appending a released buffer should fail")
	}
	if !errors.Is(dst.Err(), ErrReleased) {
		t.Errorf("Err() = %v, want ErrReleased", dst.Err())
	}
}
