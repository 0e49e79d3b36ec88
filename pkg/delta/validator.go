// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

import (
	"errors"
	"fmt"
)

// AnomalyType represents the ways a received frame can be rejected
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyBadStart
	AnomalyBadEnd
	AnomalyWrongAddress
	AnomalyWrongChain
	AnomalyDeclaredLength
	AnomalyCommandMismatch
	AnomalyCRCError
	AnomalyDecodeError
)

var anomalyNames = map[AnomalyType]string{
	AnomalyLengthMismatch:  "length mismatch",
	AnomalyBadStart:        "bad start byte",
	AnomalyBadEnd:          "bad end byte",
	AnomalyWrongAddress:    "wrong address",
	AnomalyWrongChain:      "wrong chain id",
	AnomalyDeclaredLength:  "bad declared length",
	AnomalyCommandMismatch: "command mismatch",
	AnomalyCRCError:        "crc mismatch",
	AnomalyDecodeError:     "decode error",
}

// String returns a short human-readable name
func (a AnomalyType) String() string {
	if name, ok := anomalyNames[a]; ok {
		return name
	}
	return fmt.Sprintf("anomaly(%d)", int(a))
}

// FrameError reports a structural mismatch between a received frame and
// the reply the pending command expects. Frame and Expected are kept for
// diagnostic dumps.
type FrameError struct {
	Type     AnomalyType
	Offset   int // byte position of the mismatch, -1 for whole-frame errors
	Got      int
	Want     int
	Frame    []byte
	Expected []byte
}

// Error implements the error interface
func (e *FrameError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s: got %d, want %d", e.Type, e.Got, e.Want)
	}
	return fmt.Sprintf("%s at byte %d: got 0x%02X, want 0x%02X", e.Type, e.Offset, e.Got, e.Want)
}

// CRCError reports a structurally valid frame whose checksum does not match.
type CRCError struct {
	Received   uint16
	Calculated uint16
	Frame      []byte
	Expected   []byte
}

// Error implements the error interface
func (e *CRCError) Error() string {
	return fmt.Sprintf("CRC mismatch: received 0x%04X, calculated 0x%04X", e.Received, e.Calculated)
}

// Classify maps a decode or validation error onto its anomaly type.
func Classify(err error) AnomalyType {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Type
	}
	var ce *CRCError
	if errors.As(err, &ce) {
		return AnomalyCRCError
	}
	return AnomalyDecodeError
}

// Mismatch returns the received and expected frames carried by err, if any.
func Mismatch(err error) (received, expected []byte, ok bool) {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Frame, fe.Expected, true
	}
	var ce *CRCError
	if errors.As(err, &ce) {
		return ce.Frame, ce.Expected, true
	}
	return nil, nil, false
}
