// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package report turns the outcome of a sweep into the payload posted to the
// tag writer.
//
// Two shapes exist. A completed sweep reports every value under its tag,
// plus a healthy marker for the device group when the previous sweep had
// failed:
//
//	{"tags":{"instant-current-i1":300,...}}
//	{"tags":{...},"groups":{"2":"healthy"}}
//
// A sweep abandoned on a timeout reports only the group as unhealthy:
//
//	{"groups":{"2":"unhealthy"}}
package report

import (
	"fmt"
	"time"

	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/Thermoquad/deltagate/pkg/sbuf"
)

// DefaultGroup is the tag writer group the inverter belongs to.
const DefaultGroup = "2"

// Health is the group status carried by a report.
type Health int

const (
	HealthNone Health = iota // no group status in the report
	Healthy
	Unhealthy
)

// String returns the wire name of h
func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	default:
		return ""
	}
}

// TagValue is one reported value.
type TagValue struct {
	Tag   string
	Value uint32
}

// Report is the structured form of one sweep outcome.
type Report struct {
	At     time.Time
	Group  string
	Tags   []TagValue
	Health Health
}

// Normal builds the report for a completed sweep. values must line up with
// cat.
func Normal(values []uint32, cat delta.Catalog, recovered bool, group string) (*Report, error) {
	if len(values) != len(cat) {
		return nil, fmt.Errorf("%d values for %d catalog entries", len(values), len(cat))
	}

	tags := make([]TagValue, len(cat))
	for i, cmd := range cat {
		tags[i] = TagValue{Tag: cmd.Tag, Value: values[i]}
	}

	r := &Report{
		At:    time.Now(),
		Group: group,
		Tags:  tags,
	}
	if recovered {
		r.Health = Healthy
	}
	return r, nil
}

// Timeout builds the report for a sweep abandoned on a response timeout.
func Timeout(group string) *Report {
	return &Report{
		At:     time.Now(),
		Group:  group,
		Health: Unhealthy,
	}
}

// JSON renders r into a new buffer owned by the caller. On failure the
// partial buffer is released and nil is returned.
func (r *Report) JSON() (*sbuf.Buffer, error) {
	buf := sbuf.New(r.sizeHint())

	buf.AppendString("{")
	if len(r.Tags) > 0 {
		buf.AppendString(`"tags":{`)
		for i, tv := range r.Tags {
			if i > 0 {
				buf.AppendString(",")
			}
			buf.AppendString(`"`)
			buf.AppendString(tv.Tag)
			buf.AppendString(`":`)
			buf.AppendUint(uint64(tv.Value))
		}
		buf.AppendString("}")
	}
	if r.Health != HealthNone {
		if len(r.Tags) > 0 {
			buf.AppendString(",")
		}
		buf.AppendString(`"groups":{"`)
		buf.AppendString(r.Group)
		buf.AppendString(`":"`)
		buf.AppendString(r.Health.String())
		buf.AppendString(`"}`)
	}
	buf.AppendString("}")

	if err := buf.Err(); err != nil {
		buf.Release()
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	return buf, nil
}

// sizeHint estimates the rendered length so most reports fit without
// growing.
func (r *Report) sizeHint() int {
	n := 48 + len(r.Group)
	for _, tv := range r.Tags {
		n += len(tv.Tag) + 14
	}
	return n
}

// BuildNormal renders the report for a completed sweep.
func BuildNormal(values []uint32, cat delta.Catalog, recovered bool, group string) (*sbuf.Buffer, error) {
	r, err := Normal(values, cat, recovered, group)
	if err != nil {
		return nil, err
	}
	return r.JSON()
}

// BuildTimeout renders the report for a timed-out sweep.
func BuildTimeout(group string) (*sbuf.Buffer, error) {
	return Timeout(group).JSON()
}
