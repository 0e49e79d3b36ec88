// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package report

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// wireReport mirrors the JSON shape with a timestamp added.
type wireReport struct {
	At     int64             `cbor:"at"`
	Tags   map[string]uint32 `cbor:"tags,omitempty"`
	Groups map[string]string `cbor:"groups,omitempty"`
}

// Map keys are sorted so equal reports encode to equal bytes.
var cborEncMode, _ = cbor.CoreDetEncOptions().EncMode()

// CBOR encodes r for compact transports. The timestamp is Unix seconds.
func (r *Report) CBOR() ([]byte, error) {
	w := wireReport{At: r.At.Unix()}
	if len(r.Tags) > 0 {
		w.Tags = make(map[string]uint32, len(r.Tags))
		for _, tv := range r.Tags {
			w.Tags[tv.Tag] = tv.Value
		}
	}
	if r.Health != HealthNone {
		w.Groups = map[string]string{r.Group: r.Health.String()}
	}

	data, err := cborEncMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR report: %w", err)
	}
	return data, nil
}

// ParseCBOR decodes a report produced by CBOR. Tag order is not preserved.
func ParseCBOR(data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}

	var w wireReport
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	r := &Report{At: time.Unix(w.At, 0)}
	for tag, value := range w.Tags {
		r.Tags = append(r.Tags, TagValue{Tag: tag, Value: value})
	}
	for group, status := range w.Groups {
		r.Group = group
		switch status {
		case "healthy":
			r.Health = Healthy
		case "unhealthy":
			r.Health = Unhealthy
		default:
			return nil, fmt.Errorf("unknown group status %q", status)
		}
	}
	return r, nil
}
