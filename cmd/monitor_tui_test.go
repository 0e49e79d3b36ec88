// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/deltagate/internal/gateway"
	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/Thermoquad/deltagate/pkg/exchange"
	"github.com/Thermoquad/deltagate/pkg/report"
	tea "github.com/charmbracelet/bubbletea"
)

func sendUpdate(m monitorModel, u gateway.Update) monitorModel {
	next, _ := m.Update(gatewayMsg(u))
	return next.(monitorModel)
}

// ============================================================
// Dashboard Model
// ============================================================

func TestMonitorModel_ValuesTable(t *testing.T) {
	cat := delta.DefaultCatalog()[:3]
	m := newMonitorModel("Serial: test", time.Minute, cat)

	if rows := m.rows(); len(rows) != 3 || rows[0][3] != "-" {
		t.Fatalf("initial rows = %v", rows)
	}

	awaiting := exchange.State{Phase: exchange.Awaiting, Index: 1}
	m = sendUpdate(m, gateway.Update{Kind: gateway.UpdateTransmit, Index: 0, State: exchange.State{Phase: exchange.Awaiting}})
	m = sendUpdate(m, gateway.Update{Kind: gateway.UpdateAccepted, Index: 0, Value: 300, State: awaiting})

	rows := m.rows()
	if rows[0][1] != "10:01" || rows[0][3] != "300" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1][3] != "-" {
		t.Errorf("row 1 = %v", rows[1])
	}

	// A new sweep marks values from the previous one as stale.
	m = sendUpdate(m, gateway.Update{Kind: gateway.UpdateTransmit, Index: 0, State: exchange.State{Phase: exchange.Awaiting}})
	if got := m.rows()[0][3]; got != "300*" {
		t.Errorf("stale value = %q, want 300*", got)
	}
}

func TestMonitorModel_Events(t *testing.T) {
	cat := delta.DefaultCatalog()[:2]
	m := newMonitorModel("Serial: test", time.Minute, cat)

	m = sendUpdate(m, gateway.Update{Kind: gateway.UpdateTimeout, Command: cat[1], Degraded: true})
	m = sendUpdate(m, gateway.Update{Kind: gateway.UpdateReport, Report: report.Timeout("2"), Degraded: true})

	if len(m.events) != 2 {
		t.Fatalf("events = %+v", m.events)
	}
	if !m.events[0].isError || !strings.Contains(m.events[0].message, cat[1].Tag) {
		t.Errorf("timeout event = %+v", m.events[0])
	}
	if m.health != report.Unhealthy || !m.degraded {
		t.Errorf("health = %v, degraded = %v", m.health, m.degraded)
	}

	next, _ := m.Update(gatewayDoneMsg{err: errors.New("read error: link closed")})
	m = next.(monitorModel)
	if m.linkErr == nil || !strings.Contains(m.View(), "Link down") {
		t.Error("link failure not shown")
	}
}

func TestMonitorModel_EventLogBounded(t *testing.T) {
	m := newMonitorModel("Serial: test", time.Minute, delta.DefaultCatalog())
	for i := 0; i < m.maxEvents+20; i++ {
		m.addEvent("tick skipped", true)
	}
	if len(m.events) != m.maxEvents {
		t.Errorf("events = %d, want %d", len(m.events), m.maxEvents)
	}
}

func TestMonitorModel_Quit(t *testing.T) {
	m := newMonitorModel("Serial: test", time.Minute, delta.DefaultCatalog())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !next.(monitorModel).quitting || cmd == nil {
		t.Error("q should quit")
	}
}

// ============================================================
// Poll Output
// ============================================================

func TestFormatOutcome(t *testing.T) {
	cat := delta.DefaultCatalog()[:3]

	done := formatOutcome(&gateway.Outcome{Completed: true, Values: []uint32{300, 2, 3}, TimedOut: -1}, cat)
	if !strings.Contains(done, "10:01  "+cat[0].Tag) || !strings.Contains(done, "300") {
		t.Errorf("complete table:\n%s", done)
	}

	partial := formatOutcome(&gateway.Outcome{Values: []uint32{300, 7, 9}, TimedOut: 1}, cat)
	lines := strings.Split(strings.TrimSpace(partial), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d", len(lines))
	}
	if !strings.HasSuffix(lines[1], "300") || !strings.HasSuffix(lines[2], "-") || !strings.HasSuffix(lines[3], "-") {
		t.Errorf("timed-out table:\n%s", partial)
	}
}

func TestPollExitCode(t *testing.T) {
	tests := []struct {
		name string
		out  *gateway.Outcome
		err  error
		want int
	}{
		{"completed", &gateway.Outcome{Completed: true, TimedOut: -1}, nil, 0},
		{"timed out", &gateway.Outcome{TimedOut: 2}, nil, 1},
		{"link closed", nil, errors.New("read error: link closed"), 2},
		{"interrupted", nil, context.Canceled, 0},
		{"interrupted wrapped", nil, fmt.Errorf("sweep: %w", context.Canceled), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pollExitCode(tt.out, tt.err); got != tt.want {
				t.Errorf("pollExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
