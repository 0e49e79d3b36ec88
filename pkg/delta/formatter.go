// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

import (
	"fmt"
	"strings"
)

// FormatHex renders b as space-separated hex bytes, e.g. "02 05 01".
func FormatHex(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// FormatTrace renders a traced transfer as "tx (9): 02 05 ...".
func FormatTrace(direction string, b []byte) string {
	return fmt.Sprintf("%s (%d): %s", direction, len(b), FormatHex(b))
}

// FormatFrame formats a scanned frame into a human-readable line. Known
// commands are labelled from cat.
func FormatFrame(f *Frame, cat Catalog) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	cmd := f.Command(cat)

	kind := "REQUEST"
	if f.IsReply() {
		kind = "REPLY"
	}

	label := cmd.Tag
	if label == "" {
		label = "unknown"
	}

	result := fmt.Sprintf("[%s] %-7s addr=0x%02X chain=0x%02X cmd=%02X:%02X %s",
		timestamp, kind, f.Address, f.ChainID, f.High, f.Low, label)
	if f.IsReply() {
		result += fmt.Sprintf(" value=%d", f.Value())
	}
	return result + "\n"
}

// FormatReply formats a validated reply as "tag = value".
func FormatReply(r *Reply) string {
	return fmt.Sprintf("%-22s = %d", r.Command.Tag, r.Value)
}

// FormatMismatch renders a rejected frame next to the frame that was
// expected, marking the differing bytes with '^'.
func FormatMismatch(err error) string {
	result := fmt.Sprintf("rejected: %v (%s)\n", err, Classify(err))

	received, expected, ok := Mismatch(err)
	if !ok {
		return result
	}

	result += fmt.Sprintf("  received (%2d): %s\n", len(received), FormatHex(received))
	if len(expected) == 0 {
		return result
	}
	result += fmt.Sprintf("  expected (%2d): %s\n", len(expected), FormatHex(expected))

	var marks strings.Builder
	differs := false
	for i := 0; i < len(received) || i < len(expected); i++ {
		if i > 0 {
			marks.WriteByte(' ')
		}
		if i >= len(received) || i >= len(expected) || received[i] != expected[i] {
			marks.WriteString("^^")
			differs = true
		} else {
			marks.WriteString("  ")
		}
	}
	if differs {
		result += "                 " + strings.TrimRight(marks.String(), " ") + "\n"
	}
	return result
}

// FormatCatalog lists cat with the request frame of every entry.
func FormatCatalog(cat Catalog, enc *Encoder) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-3s  %-5s  %-3s  %-22s  %-26s  %s\n", "#", "CMD", "LEN", "TAG", "REQUEST", "DESCRIPTION")
	for i, cmd := range cat {
		fmt.Fprintf(&sb, "%-3d  %02X:%02X  %-3d  %-22s  %-26s  %s\n",
			i, cmd.High, cmd.Low, cmd.ReplyLength, cmd.Tag, FormatHex(enc.Encode(cmd)), cmd.Description)
	}
	return sb.String()
}
