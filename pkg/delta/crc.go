// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

import "github.com/sigurn/crc16"

// The inverter's checksum is CRC-16/ARC: reflected polynomial 0xA001,
// initial value 0, no final XOR.
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Checksum computes the frame CRC over packet[1:]. The leading STX byte is
// excluded to match the inverter's own calculation, so a packet holding
// nothing beyond STX yields 0.
func Checksum(packet []byte) uint16 {
	if len(packet) <= 1 {
		return 0
	}
	return crc16.Checksum(packet[1:], crcTable)
}
