// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

import "fmt"

// Command is one polled value: the command pair sent to the inverter, the
// payload size of its reply and the tag the value is reported under.
type Command struct {
	High        byte
	Low         byte
	ReplyLength int // payload bytes in the reply: 1, 2 or 4
	Tag         string
	Description string
}

// FrameLength returns the total length of the reply frame for c.
func (c Command) FrameLength() int {
	return ReplyLength(c.ReplyLength)
}

// String returns a short identifier such as "10:01 instant-current-i1".
func (c Command) String() string {
	return fmt.Sprintf("%02X:%02X %s", c.High, c.Low, c.Tag)
}

// Catalog is an ordered, read-only command table. The order is both the
// transmission sequence of a sweep and the index of each value in the
// result table.
type Catalog []Command

// Len returns the number of values a sweep over the catalog produces.
func (c Catalog) Len() int {
	return len(c)
}

// Lookup returns the index of the entry reported under tag.
func (c Catalog) Lookup(tag string) (int, bool) {
	for i, cmd := range c {
		if cmd.Tag == tag {
			return i, true
		}
	}
	return -1, false
}

// Validate checks that every entry has a decodable reply length and a
// unique, non-empty tag.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]int, len(c))
	for i, cmd := range c {
		switch cmd.ReplyLength {
		case 1, 2, 4:
		default:
			return fmt.Errorf("entry %d (%s): unsupported reply length %d", i, cmd.Tag, cmd.ReplyLength)
		}
		if cmd.Tag == "" {
			return fmt.Errorf("entry %d: empty tag", i)
		}
		if prev, dup := seen[cmd.Tag]; dup {
			return fmt.Errorf("entry %d: tag %q already used by entry %d", i, cmd.Tag, prev)
		}
		seen[cmd.Tag] = i
	}
	return nil
}

// extendedCatalog is every command the gateway knows about. Only the first
// DefaultCatalogSize entries are polled; the MPP settings at the end all
// share one command pair on the inverters seen so far.
var extendedCatalog = Catalog{
	{0x10, 0x01, 2, "instant-current-i1", "Instantaneous current - input 1"},
	{0x10, 0x02, 2, "instant-voltage-i1", "Instantaneous voltage - input 1"},
	{0x10, 0x03, 2, "instant-power-i1", "Instantaneous power - input 1"},
	{0x11, 0x01, 2, "average-current-i1", "Average current - input 1"},
	{0x11, 0x02, 2, "average-voltage-i1", "Average voltage - input 1"},
	{0x11, 0x03, 2, "average-power-i1", "Average power - input 1"},
	{0x20, 0x05, 2, "internal-temp-ac", "Internal temperature - AC assembly"},
	{0x21, 0x08, 2, "internal-temp-dc", "Internal temperature - DC assembly"},
	{0x10, 0x07, 2, "instant-current-ac", "Instantaneous current - AC output"},
	{0x10, 0x08, 2, "instant-voltage-ac", "Instantaneous voltage - AC output"},
	{0x10, 0x09, 2, "instant-power-ac", "Instantaneous power - AC output"},
	{0x10, 0x0A, 2, "instant-frequency-ac", "Instantaneous frequency - AC output"},
	{0x11, 0x07, 2, "average-current-ac", "Average current - AC output"},
	{0x11, 0x08, 2, "average-voltage-ac", "Average voltage - AC output"},
	{0x11, 0x09, 2, "average-power-ac", "Average power - AC output"},
	{0x11, 0x0A, 2, "average-frequency-ac", "Average frequency - AC output"},
	{0x13, 0x03, 2, "day-energy", "Day energy"},
	{0x13, 0x04, 2, "day-run-time", "Day running time"},
	{0x14, 0x03, 2, "week-energy", "Week energy"},
	{0x14, 0x04, 2, "week-run-time", "Week running time"},
	{0x15, 0x03, 2, "month-energy", "Month energy"},
	{0x15, 0x04, 2, "month-run-time", "Month running time"},
	{0x16, 0x03, 4, "year-energy", "Year energy"},
	{0x16, 0x04, 4, "year-run-time", "Year running time"},
	{0x17, 0x03, 4, "total-energy", "Total energy"},
	{0x17, 0x04, 4, "total-run-time", "Total running time"},
	{0x12, 0x01, 2, "solar-current-limit", "Solar current limit - input 1"},
	{0x12, 0x02, 2, "solar-voltage-limit", "Solar voltage limit - input 1"},
	{0x12, 0x03, 2, "solar-power-limit", "Solar power limit - input 1"},
	{0x12, 0x07, 2, "current-max-ac", "AC current max"},
	{0x12, 0x08, 2, "voltage-min-ac", "AC voltage min"},
	{0x12, 0x09, 2, "voltage-max-ac", "AC voltage max"},
	{0x12, 0x0A, 2, "power-ac", "AC power"},
	{0x12, 0x0B, 2, "frequency-min-ac", "AC frequency min"},
	{0x12, 0x0C, 2, "frequency-max-ac", "AC frequency max"},
	{0x03, 0x05, 2, "starting-voltage", "Starting voltage"},
	{0x03, 0x06, 2, "under-voltage-1", "Under voltage 1"},
	{0x03, 0x07, 2, "under-voltage-2", "Under voltage 2"},
	{0x08, 0x02, 2, "mpp-min", "Min MPP"},
	{0x08, 0x02, 2, "mpp-max", "Max MPP"},
	{0x08, 0x02, 1, "increment", "Increment"},
	{0x08, 0x02, 1, "exp-factor", "Exponential factor"},
	{0x08, 0x02, 2, "mpp-power-min", "Min MPP power"},
	{0x08, 0x02, 2, "mpp-sampling", "MPP sampling"},
	{0x08, 0x02, 2, "mpp-scan-rate", "MPP scan rate"},
	{0x08, 0x02, 1, "mpp-tracker-count", "Number of MPP trackers"},
	{0x08, 0x02, 2, "startup-emissions", "Startup emissions"},
}

// DefaultCatalogSize is the number of commands polled per sweep.
const DefaultCatalogSize = 38

// DefaultCatalog returns a copy of the polled command table.
func DefaultCatalog() Catalog {
	return append(Catalog(nil), extendedCatalog[:DefaultCatalogSize]...)
}

// ExtendedCatalog returns a copy of every known command, including the
// unpolled MPP settings.
func ExtendedCatalog() Catalog {
	return append(Catalog(nil), extendedCatalog...)
}
