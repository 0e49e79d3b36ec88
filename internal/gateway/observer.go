// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"time"

	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/Thermoquad/deltagate/pkg/exchange"
	"github.com/Thermoquad/deltagate/pkg/report"
)

// UpdateKind identifies what an Update describes.
type UpdateKind int

const (
	UpdateTransmit UpdateKind = iota
	UpdateAccepted
	UpdateRejected
	UpdateComplete
	UpdateTimeout
	UpdateSkipped
	UpdateReport
)

var updateKindNames = map[UpdateKind]string{
	UpdateTransmit: "transmit",
	UpdateAccepted: "accepted",
	UpdateRejected: "rejected",
	UpdateComplete: "complete",
	UpdateTimeout:  "timeout",
	UpdateSkipped:  "skipped",
	UpdateReport:   "report",
}

func (k UpdateKind) String() string {
	if name, ok := updateKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Update is a snapshot handed to observers after each effect.
type Update struct {
	Kind     UpdateKind
	Time     time.Time
	State    exchange.State
	Degraded bool

	Index   int
	Command delta.Command
	Value   uint32
	Err     error
	Values  []uint32
	Report  *report.Report

	Stats delta.Statistics
}

// Observer receives updates from the gateway loop.
type Observer func(Update)

func (g *Gateway) notify(u Update) {
	if g.observer == nil {
		return
	}
	u.Time = time.Now()
	u.State = g.machine.State()
	u.Degraded = g.machine.Degraded()
	u.Stats = *g.stats
	g.observer(u)
}
