// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"fmt"
	"net"
	"sync"
)

const (
	// DefaultUDPPort is used when the mirror address has no port
	DefaultUDPPort = "65432"

	// LineBufferSize bounds one mirrored datagram
	LineBufferSize = 128
)

// UDPWriter mirrors log output to a UDP listener, one datagram per line.
// Lines longer than the buffer are split into full-buffer datagrams.
type UDPWriter struct {
	mu   sync.Mutex
	conn net.Conn
	buf  [LineBufferSize]byte
	n    int
}

// DialUDP connects a writer to addr. A bare host gets DefaultUDPPort.
func DialUDP(addr string) (*UDPWriter, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultUDPPort)
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug mirror %s: %w", addr, err)
	}
	return &UDPWriter{conn: conn}, nil
}

// Write buffers p and sends every completed line. Send errors are dropped;
// the mirror must never block or fail logging.
func (w *UDPWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		w.buf[w.n] = b
		w.n++
		if (b == '\n' && w.n > 1) || w.n == len(w.buf) {
			w.flush()
		}
	}
	return len(p), nil
}

// Flush sends any partial line.
func (w *UDPWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.n > 0 {
		w.flush()
	}
}

// Close flushes and closes the socket.
func (w *UDPWriter) Close() error {
	w.Flush()
	return w.conn.Close()
}

func (w *UDPWriter) flush() {
	w.conn.Write(w.buf[:w.n])
	w.n = 0
}
