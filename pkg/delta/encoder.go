// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

// Encoder builds request frames addressed to one inverter on the chain.
type Encoder struct {
	Address byte
	ChainID byte
}

// NewEncoder creates an encoder for the default inverter address.
func NewEncoder() *Encoder {
	return &Encoder{
		Address: InverterAddress,
		ChainID: ChainID,
	}
}

// Encode returns the 9-byte request frame for cmd.
func (e *Encoder) Encode(cmd Command) []byte {
	frame := make([]byte, RequestLength)
	e.EncodeInto(frame, cmd)
	return frame
}

// EncodeInto writes the request for cmd into dst, which must hold at least
// RequestLength bytes, and returns the number of bytes written.
func (e *Encoder) EncodeInto(dst []byte, cmd Command) int {
	_ = dst[RequestLength-1]

	dst[offsetSTX] = STX
	dst[offsetAddress] = e.Address
	dst[offsetChainID] = e.ChainID
	dst[offsetLength] = CommandLength
	dst[offsetCmdHigh] = cmd.High
	dst[offsetCmdLow] = cmd.Low

	// CRC is transmitted low byte first
	crc := Checksum(dst[:HeaderLength])
	dst[HeaderLength] = byte(crc & 0xFF)
	dst[HeaderLength+1] = byte(crc >> 8)
	dst[HeaderLength+2] = ETX

	return RequestLength
}

// EncodeRequest encodes cmd for the default inverter address.
func EncodeRequest(cmd Command) []byte {
	return NewEncoder().Encode(cmd)
}

// NewReplyEncoder creates an encoder that builds replies as the inverter
// sends them, addressed to the default gateway address.
func NewReplyEncoder() *Encoder {
	return &Encoder{
		Address: GatewayAddress,
		ChainID: ChainID,
	}
}

// EncodeReply builds the reply frame the inverter sends for cmd carrying
// value. The value is truncated to cmd.ReplyLength bytes, big-endian.
func (e *Encoder) EncodeReply(cmd Command, value uint32) []byte {
	n := cmd.ReplyLength
	if n < 0 {
		n = 0
	}
	if n > MaxPayloadSize {
		n = MaxPayloadSize
	}

	frame := make([]byte, ReplyLength(n))
	frame[offsetSTX] = STX
	frame[offsetAddress] = e.Address
	frame[offsetChainID] = e.ChainID
	frame[offsetLength] = byte(n + CommandLength)
	frame[offsetCmdHigh] = cmd.High
	frame[offsetCmdLow] = cmd.Low
	for i := 0; i < n; i++ {
		frame[offsetPayload+i] = byte(value >> (8 * (n - 1 - i)))
	}

	crcOffset := offsetPayload + n
	crc := Checksum(frame[:crcOffset])
	frame[crcOffset] = byte(crc & 0xFF)
	frame[crcOffset+1] = byte(crc >> 8)
	frame[crcOffset+2] = ETX

	return frame
}
