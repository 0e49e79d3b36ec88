// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"
)

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readDatagram(t *testing.T, conn *net.UDPConn) string {
	t.Helper()
	buf := make([]byte, 512)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read datagram: %v", err)
	}
	return string(buf[:n])
}

// ============================================================
// UDP Mirror
// ============================================================

func TestUDPWriter_LinePerDatagram(t *testing.T) {
	ln := listenUDP(t)
	w, err := DialUDP(ln.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.Write([]byte("first line\nsecond "))
	w.Write([]byte("line\n"))

	if got := readDatagram(t, ln); got != "first line\n" {
		t.Errorf("datagram 1 = %q", got)
	}
	if got := readDatagram(t, ln); got != "second line\n" {
		t.Errorf("datagram 2 = %q", got)
	}
}

func TestUDPWriter_LoneNewlineHeld(t *testing.T) {
	ln := listenUDP(t)
	w, err := DialUDP(ln.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// A bare newline is not sent on its own; it prefixes the next line.
	w.Write([]byte("\nnext\n"))
	if got := readDatagram(t, ln); got != "\nnext\n" {
		t.Errorf("datagram = %q", got)
	}
}

func TestUDPWriter_SplitsLongLines(t *testing.T) {
	ln := listenUDP(t)
	w, err := DialUDP(ln.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	long := strings.Repeat("x", LineBufferSize+10) + "\n"
	w.Write([]byte(long))

	if got := readDatagram(t, ln); len(got) != LineBufferSize {
		t.Errorf("first datagram = %d bytes, want %d", len(got), LineBufferSize)
	}
	if got := readDatagram(t, ln); got != strings.Repeat("x", 10)+"\n" {
		t.Errorf("second datagram = %q", got)
	}
}

// ============================================================
// Setup
// ============================================================

func TestSetup_JSON(t *testing.T) {
	var out bytes.Buffer
	logger, closer, err := Setup(Options{Level: "debug", Format: "json"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	l := Component(logger, "exchange")
	l.Debug().Int("index", 3).Msg("reply accepted")

	var entry map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if entry["component"] != "exchange" || entry["message"] != "reply accepted" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	var out bytes.Buffer
	logger, _, err := Setup(Options{Level: "warn", Format: "json"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Msg("hidden")
	if out.Len() != 0 {
		t.Errorf("info logged at warn level: %s", out.String())
	}
}

func TestSetup_BadLevel(t *testing.T) {
	if _, _, err := Setup(Options{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("Setup() accepted an unknown level")
	}
}

func TestSetup_Mirror(t *testing.T) {
	ln := listenUDP(t)
	var out bytes.Buffer
	logger, closer, err := Setup(Options{Format: "json", DebugUDP: ln.LocalAddr().String()}, &out)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Info().Msg("sweep complete")
	if got := readDatagram(t, ln); !strings.Contains(got, "sweep complete") {
		t.Errorf("mirrored datagram = %q", got)
	}
	if !strings.Contains(out.String(), "sweep complete") {
		t.Error("primary output missing the entry")
	}
}
