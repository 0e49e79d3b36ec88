// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Thermoquad/deltagate/pkg/delta"
)

// ============================================================
// JSON Shapes
// ============================================================

func TestBuildTimeout(t *testing.T) {
	buf, err := BuildTimeout(DefaultGroup)
	if err != nil {
		t.Fatalf("BuildTimeout() error = %v", err)
	}
	defer buf.Release()

	want := `{"groups":{"2":"unhealthy"}}`
	if buf.String() != want {
		t.Errorf("got %s, want %s", buf.String(), want)
	}
}

func TestBuildNormal_Shapes(t *testing.T) {
	cat := delta.DefaultCatalog()[:2]
	values := []uint32{300, 100000}

	tests := []struct {
		name      string
		recovered bool
		want      string
	}{
		{
			name: "steady",
			want: `{"tags":{"instant-current-i1":300,"instant-voltage-i1":100000}}`,
		},
		{
			name:      "recovered",
			recovered: true,
			want:      `{"tags":{"instant-current-i1":300,"instant-voltage-i1":100000},"groups":{"2":"healthy"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := BuildNormal(values, cat, tt.recovered, DefaultGroup)
			if err != nil {
				t.Fatalf("BuildNormal() error = %v", err)
			}
			defer buf.Release()
			if buf.String() != tt.want {
				t.Errorf("got %s\nwant %s", buf.String(), tt.want)
			}
		})
	}
}

func TestBuildNormal_FullCatalog(t *testing.T) {
	cat := delta.DefaultCatalog()
	values := make([]uint32, cat.Len())
	for i := range values {
		values[i] = uint32(i)
	}
	idx, _ := cat.Lookup("total-energy")
	values[idx] = 100000

	buf, err := BuildNormal(values, cat, false, DefaultGroup)
	if err != nil {
		t.Fatalf("BuildNormal() error = %v", err)
	}
	defer buf.Release()

	var decoded struct {
		Tags   map[string]uint32 `json:"tags"`
		Groups map[string]string `json:"groups"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Tags) != 38 {
		t.Errorf("tags = %d, want 38", len(decoded.Tags))
	}
	if decoded.Tags["total-energy"] != 100000 {
		t.Errorf("total-energy = %d", decoded.Tags["total-energy"])
	}
	if decoded.Groups != nil {
		t.Error("steady report should carry no groups")
	}

	// Catalog order is preserved on the wire.
	s := buf.String()
	prev := -1
	for _, cmd := range cat {
		pos := strings.Index(s, `"`+cmd.Tag+`":`)
		if pos <= prev {
			t.Fatalf("tag %s out of order", cmd.Tag)
		}
		prev = pos
	}
}

func TestBuildNormal_LengthMismatch(t *testing.T) {
	if _, err := BuildNormal([]uint32{1}, delta.DefaultCatalog(), false, DefaultGroup); err == nil {
		t.Error("BuildNormal() accepted mismatched values")
	}
}

func TestJSON_NULInTagFails(t *testing.T) {
	r := &Report{Group: DefaultGroup, Tags: []TagValue{{Tag: "bad\x00tag", Value: 1}}}
	buf, err := r.JSON()
	if err == nil {
		buf.Release()
		t.Fatal("JSON() accepted a tag with NUL")
	}
	if buf != nil {
		t.Error("failed build should not return a buffer")
	}
}

// ============================================================
// CBOR
// ============================================================

func TestCBOR_RoundTrip(t *testing.T) {
	cat := delta.DefaultCatalog()[:3]
	r, err := Normal([]uint32{1, 2, 3}, cat, true, DefaultGroup)
	if err != nil {
		t.Fatal(err)
	}

	data, err := r.CBOR()
	if err != nil {
		t.Fatalf("CBOR() error = %v", err)
	}
	back, err := ParseCBOR(data)
	if err != nil {
		t.Fatalf("ParseCBOR() error = %v", err)
	}

	if back.Health != Healthy || back.Group != DefaultGroup {
		t.Errorf("health = %s group = %q", back.Health, back.Group)
	}
	if back.At.Unix() != r.At.Unix() {
		t.Errorf("At = %v, want %v", back.At, r.At)
	}
	got := make(map[string]uint32)
	for _, tv := range back.Tags {
		got[tv.Tag] = tv.Value
	}
	for _, tv := range r.Tags {
		if got[tv.Tag] != tv.Value {
			t.Errorf("%s = %d, want %d", tv.Tag, got[tv.Tag], tv.Value)
		}
	}
}

func TestCBOR_Deterministic(t *testing.T) {
	r := Timeout(DefaultGroup)
	a, err := r.CBOR()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.CBOR()
	if string(a) != string(b) {
		t.Error("encoding the same report twice should give equal bytes")
	}
}

func TestParseCBOR_Empty(t *testing.T) {
	if _, err := ParseCBOR(nil); err == nil {
		t.Error("ParseCBOR(nil) should fail")
	}
}
