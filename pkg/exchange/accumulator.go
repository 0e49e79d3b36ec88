// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package exchange

import "github.com/Thermoquad/deltagate/pkg/delta"

// accumulator collects reply bytes in a fixed buffer.
type accumulator struct {
	buf     [delta.RxBufferLength]byte
	n       int
	dropped int
}

// push appends b. A zero byte arriving while the accumulator is empty is
// line noise from the transceiver turning around and is discarded. Bytes
// past the buffer capacity are dropped.
func (a *accumulator) push(b byte) {
	if a.n == 0 && b == 0 {
		return
	}
	if a.n >= len(a.buf) {
		a.dropped++
		return
	}
	a.buf[a.n] = b
	a.n++
}

func (a *accumulator) len() int {
	return a.n
}

func (a *accumulator) bytes() []byte {
	return a.buf[:a.n]
}

func (a *accumulator) reset() {
	a.n = 0
}
