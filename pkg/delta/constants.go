// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package delta implements the serial request/response protocol spoken by
// Delta solar inverters on their RS-485 port.
//
// Every exchange is a single request from the gateway answered by a single
// reply from the inverter. Both directions share one frame layout:
//
//	[0]   STX (0x02)
//	[1]   destination address
//	[2]   inverter chain ID
//	[3]   declared length (command pair + payload)
//	[4-5] command pair
//	[6..] payload (replies only)
//	[+0]  CRC low byte
//	[+1]  CRC high byte
//	[+2]  ETX (0x03)
//
// The package provides the command catalog, request encoding, reply
// validation, a passive frame scanner and diagnostic formatting.
package delta

// Protocol framing bytes
const (
	STX = 0x02
	ETX = 0x03
)

// Default bus addresses
const (
	InverterAddress = 0x05 // destination of requests
	GatewayAddress  = 0x06 // destination of replies
	ChainID         = 0x01
)

// Frame geometry
const (
	CommandLength  = 2 // command pair bytes
	FrameOverhead  = 7 // STX, address, chain ID, length, CRC x2, ETX
	RequestLength  = FrameOverhead + CommandLength
	HeaderLength   = 6 // STX through command pair
	MaxPayloadSize = 4
	MaxFrameSize   = RequestLength + MaxPayloadSize

	// RxBufferLength bounds the receive accumulator
	RxBufferLength = 16
)

// Byte offsets within a frame
const (
	offsetSTX     = 0
	offsetAddress = 1
	offsetChainID = 2
	offsetLength  = 3
	offsetCmdHigh = 4
	offsetCmdLow  = 5
	offsetPayload = 6
)

// ReplyLength returns the total frame length of a reply carrying payloadLen
// bytes of data.
func ReplyLength(payloadLen int) int {
	return payloadLen + RequestLength
}
