// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Reply is a validated inverter reply.
type Reply struct {
	Command   Command
	Payload   []byte
	Value     uint32
	CRC       uint16
	Timestamp time.Time
}

// Validator checks reply frames against the command that solicited them.
type Validator struct {
	Address byte // address replies are sent to
	ChainID byte
}

// NewValidator creates a validator for the default gateway address.
func NewValidator() *Validator {
	return &Validator{
		Address: GatewayAddress,
		ChainID: ChainID,
	}
}

// Validate checks frame against the reply expected for cmd and decodes its
// value. Structural checks run first; the checksum is only compared on a
// frame whose framing is intact. A *FrameError or *CRCError is returned on
// rejection.
func (v *Validator) Validate(frame []byte, cmd Command) (*Reply, error) {
	n := cmd.ReplyLength
	want := ReplyLength(n)

	if len(frame) != want {
		return nil, v.frameError(AnomalyLengthMismatch, -1, len(frame), want, frame, cmd)
	}

	checks := []struct {
		kind   AnomalyType
		offset int
		want   byte
	}{
		{AnomalyBadStart, offsetSTX, STX},
		{AnomalyWrongAddress, offsetAddress, v.Address},
		{AnomalyWrongChain, offsetChainID, v.ChainID},
		{AnomalyDeclaredLength, offsetLength, byte(n + CommandLength)},
		{AnomalyCommandMismatch, offsetCmdHigh, cmd.High},
		{AnomalyCommandMismatch, offsetCmdLow, cmd.Low},
		{AnomalyBadEnd, n + HeaderLength + 2, ETX},
	}
	for _, c := range checks {
		if frame[c.offset] != c.want {
			return nil, v.frameError(c.kind, c.offset, int(frame[c.offset]), int(c.want), frame, cmd)
		}
	}

	crcOffset := n + HeaderLength
	received := binary.LittleEndian.Uint16(frame[crcOffset:])
	calculated := Checksum(frame[:crcOffset])
	if received != calculated {
		return nil, &CRCError{
			Received:   received,
			Calculated: calculated,
			Frame:      cloneBytes(frame),
			Expected:   v.expected(frame, cmd),
		}
	}

	payload := cloneBytes(frame[offsetPayload:crcOffset])
	value, err := DecodeValue(payload)
	if err != nil {
		return nil, err
	}

	return &Reply{
		Command:   cmd,
		Payload:   payload,
		Value:     value,
		CRC:       received,
		Timestamp: time.Now(),
	}, nil
}

// DecodeValue interprets a 1, 2 or 4 byte payload as a big-endian unsigned
// integer.
func DecodeValue(payload []byte) (uint32, error) {
	switch len(payload) {
	case 1:
		return uint32(payload[0]), nil
	case 2:
		return uint32(binary.BigEndian.Uint16(payload)), nil
	case 4:
		return binary.BigEndian.Uint32(payload), nil
	default:
		return 0, fmt.Errorf("unsupported payload length %d", len(payload))
	}
}

func (v *Validator) frameError(kind AnomalyType, offset, got, want int, frame []byte, cmd Command) *FrameError {
	return &FrameError{
		Type:     kind,
		Offset:   offset,
		Got:      got,
		Want:     want,
		Frame:    cloneBytes(frame),
		Expected: v.expected(frame, cmd),
	}
}

// expected rebuilds the reply the validator was waiting for, carrying the
// received payload bytes where they are present.
func (v *Validator) expected(frame []byte, cmd Command) []byte {
	var value uint32
	n := cmd.ReplyLength
	if len(frame) >= offsetPayload+n {
		value, _ = DecodeValue(frame[offsetPayload : offsetPayload+n])
	}
	e := &Encoder{Address: v.Address, ChainID: v.ChainID}
	return e.EncodeReply(cmd, value)
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
