// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

import (
	"encoding/binary"
	"time"
)

// Frame is any well-formed frame seen on the bus, request or reply.
type Frame struct {
	Address   byte
	ChainID   byte
	High      byte
	Low       byte
	Payload   []byte
	CRC       uint16
	Raw       []byte
	Timestamp time.Time
}

// IsReply reports whether the frame carries a payload. Requests never do.
func (f *Frame) IsReply() bool {
	return len(f.Payload) > 0
}

// Value decodes the reply payload. Requests decode to 0.
func (f *Frame) Value() uint32 {
	v, _ := DecodeValue(f.Payload)
	return v
}

// Command returns the catalog entry matching the frame's command pair and
// payload size, or a bare Command when the catalog has none.
func (f *Frame) Command(cat Catalog) Command {
	for _, cmd := range cat {
		if cmd.High != f.High || cmd.Low != f.Low {
			continue
		}
		if f.IsReply() && cmd.ReplyLength != len(f.Payload) {
			continue
		}
		return cmd
	}
	return Command{High: f.High, Low: f.Low, ReplyLength: len(f.Payload)}
}

// scanner states
const (
	scanIdle = iota
	scanHeader
	scanBody
)

// Scanner recovers frames from a raw byte stream without knowing which
// command is outstanding. It is used to watch traffic on a shared bus.
type Scanner struct {
	state  int
	buf    []byte
	total  int
	frames uint64
}

// NewScanner creates a scanner waiting for a start byte.
func NewScanner() *Scanner {
	return &Scanner{
		buf: make([]byte, 0, MaxFrameSize),
	}
}

// Reset drops any partial frame.
func (s *Scanner) Reset() {
	s.state = scanIdle
	s.buf = s.buf[:0]
	s.total = 0
}

// Pending returns the bytes of the partial frame accumulated so far.
func (s *Scanner) Pending() []byte {
	return s.buf
}

// Frames returns the number of frames decoded since creation.
func (s *Scanner) Frames() uint64 {
	return s.frames
}

// DecodeByte processes a single byte.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error if the frame is malformed; the scanner then resynchronises
// on the next start byte.
func (s *Scanner) DecodeByte(b byte) (*Frame, error) {
	switch s.state {
	case scanIdle:
		if b != STX {
			return nil, nil
		}
		s.buf = append(s.buf[:0], b)
		s.state = scanHeader
		return nil, nil

	case scanHeader:
		s.buf = append(s.buf, b)
		if len(s.buf) <= offsetLength {
			return nil, nil
		}
		declared := int(b)
		if declared < CommandLength || declared > CommandLength+MaxPayloadSize {
			frame := cloneBytes(s.buf)
			s.Reset()
			return nil, &FrameError{
				Type:   AnomalyDeclaredLength,
				Offset: offsetLength,
				Got:    declared,
				Want:   CommandLength,
				Frame:  frame,
			}
		}
		s.total = declared + FrameOverhead
		s.state = scanBody
		return nil, nil

	case scanBody:
		s.buf = append(s.buf, b)
		if len(s.buf) < s.total {
			return nil, nil
		}
		frame, err := s.complete()
		s.Reset()
		return frame, err

	default:
		s.Reset()
		return nil, nil
	}
}

// Decode feeds p through the scanner and returns every completed frame and
// every error in arrival order.
func (s *Scanner) Decode(p []byte) ([]*Frame, []error) {
	var frames []*Frame
	var errs []error
	for _, b := range p {
		f, err := s.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
	return frames, errs
}

func (s *Scanner) complete() (*Frame, error) {
	raw := cloneBytes(s.buf)
	end := len(raw) - 1
	if raw[end] != ETX {
		return nil, &FrameError{
			Type:   AnomalyBadEnd,
			Offset: end,
			Got:    int(raw[end]),
			Want:   ETX,
			Frame:  raw,
		}
	}

	crcOffset := end - 2
	received := binary.LittleEndian.Uint16(raw[crcOffset:])
	calculated := Checksum(raw[:crcOffset])
	if received != calculated {
		return nil, &CRCError{
			Received:   received,
			Calculated: calculated,
			Frame:      raw,
		}
	}

	s.frames++
	return &Frame{
		Address:   raw[offsetAddress],
		ChainID:   raw[offsetChainID],
		High:      raw[offsetCmdHigh],
		Low:       raw[offsetCmdLow],
		Payload:   raw[offsetPayload:crcOffset],
		CRC:       received,
		Raw:       raw,
		Timestamp: time.Now(),
	}, nil
}
