// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sbuf provides an append-only text buffer used to assemble report
// payloads and the HTTP requests that carry them.
//
// A Buffer is owned by exactly one party at a time and must be released by
// its final owner. Appends are fallible: the first failure is remembered and
// every later append becomes a no-op, so a builder can issue a run of appends
// and check Err once at the end.
package sbuf

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

const (
	// MinSize is the smallest allocation a buffer starts with
	MinSize = 16

	// DefaultLimit caps the allocation of buffers created with New
	DefaultLimit = 64 * 1024
)

var (
	ErrLimit    = errors.New("sbuf: buffer limit exceeded")
	ErrReleased = errors.New("sbuf: buffer already released")
	ErrNUL      = errors.New("sbuf: content must not contain NUL bytes")
)

// Buffer is a growable, NUL-terminated byte buffer.
//
// The backing array always holds a 0 byte directly after the content, so the
// allocation is at least Len()+1 bytes.
type Buffer struct {
	data     []byte // len(data) is the allocation
	n        int
	limit    int
	grows    int
	err      error
	released bool
}

// New creates a buffer with room for at least hint bytes of content.
func New(hint int) *Buffer {
	return NewWithLimit(hint, DefaultLimit)
}

// NewWithLimit creates a buffer that refuses to grow beyond limit bytes of
// allocation (content plus terminator).
func NewWithLimit(hint, limit int) *Buffer {
	size := hint
	if size < MinSize {
		size = MinSize
	}
	if limit < MinSize {
		limit = MinSize
	}
	if size > limit {
		size = limit
	}
	return &Buffer{
		data:  make([]byte, size),
		limit: limit,
	}
}

// Len returns the number of content bytes, excluding the terminator.
func (b *Buffer) Len() int {
	return b.n
}

// Cap returns the current allocation in bytes.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Grows returns how many times the allocation has been enlarged.
func (b *Buffer) Grows() int {
	return b.grows
}

// Err returns the first append failure, or nil if every append succeeded.
func (b *Buffer) Err() error {
	return b.err
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	return b.released
}

// Bytes returns the content. The slice aliases the buffer and is only valid
// until the next append or Release.
func (b *Buffer) Bytes() []byte {
	if b.released {
		return nil
	}
	return b.data[:b.n]
}

// CString returns the content including its trailing NUL.
func (b *Buffer) CString() []byte {
	if b.released {
		return nil
	}
	return b.data[:b.n+1]
}

// String returns a copy of the content.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

// AppendBytes appends p. It fails without modifying the content if p holds
// a NUL byte or the buffer cannot grow to fit it.
func (b *Buffer) AppendBytes(p []byte) bool {
	if !b.usable() {
		return false
	}
	if bytes.IndexByte(p, 0) >= 0 {
		b.err = ErrNUL
		return false
	}
	return b.write(p)
}

// AppendString appends s.
func (b *Buffer) AppendString(s string) bool {
	if !b.usable() {
		return false
	}
	if strings.IndexByte(s, 0) >= 0 {
		b.err = ErrNUL
		return false
	}
	if !b.reserve(len(s)) {
		return false
	}
	copy(b.data[b.n:], s)
	b.n += len(s)
	b.data[b.n] = 0
	return true
}

// AppendUint appends v in decimal.
func (b *Buffer) AppendUint(v uint64) bool {
	var tmp [20]byte
	return b.AppendBytes(strconv.AppendUint(tmp[:0], v, 10))
}

// AppendInt appends v in decimal.
func (b *Buffer) AppendInt(v int64) bool {
	var tmp [20]byte
	return b.AppendBytes(strconv.AppendInt(tmp[:0], v, 10))
}

// AppendBuffer appends the content of src. src is left untouched and still
// belongs to the caller.
func (b *Buffer) AppendBuffer(src *Buffer) bool {
	if !b.usable() {
		return false
	}
	if src == nil || src.released {
		b.err = ErrReleased
		return false
	}
	return b.write(src.Bytes())
}

// Release frees the backing storage. Releasing twice is harmless; every
// later append fails with ErrReleased.
func (b *Buffer) Release() {
	if b == nil || b.released {
		return
	}
	b.released = true
	b.data = nil
	b.n = 0
}

func (b *Buffer) usable() bool {
	if b.released {
		if b.err == nil {
			b.err = ErrReleased
		}
		return false
	}
	return b.err == nil
}

func (b *Buffer) write(p []byte) bool {
	if !b.reserve(len(p)) {
		return false
	}
	copy(b.data[b.n:], p)
	b.n += len(p)
	b.data[b.n] = 0
	return true
}

// reserve makes room for extra content bytes plus the terminator.
func (b *Buffer) reserve(extra int) bool {
	required := b.n + extra + 1
	if required <= len(b.data) {
		return true
	}

	size := 2 * len(b.data)
	if size < required {
		size = required
	}
	if size > b.limit {
		if required > b.limit {
			b.err = ErrLimit
			return false
		}
		size = b.limit
	}

	grown := make([]byte, size)
	copy(grown, b.data[:b.n])
	b.data = grown
	b.grows++
	return true
}
