// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/deltagate/internal/gateway"
	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/Thermoquad/deltagate/pkg/exchange"
	"github.com/Thermoquad/deltagate/pkg/report"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type monitorEvent struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Messages
type gatewayMsg gateway.Update
type gatewayDoneMsg struct {
	err error
}

// Dashboard model
type monitorModel struct {
	connInfo string
	interval time.Duration
	cat      delta.Catalog

	values []uint32
	seen   []bool
	fresh  []bool // refreshed by the sweep in progress

	state     exchange.State
	degraded  bool
	stats     delta.Statistics
	lastSweep time.Time
	health    report.Health
	linkErr   error

	events    []monitorEvent
	maxEvents int

	spinner spinner.Model
	table   table.Model

	width    int
	height   int
	quitting bool
}

func newMonitorModel(connInfo string, interval time.Duration, cat delta.Catalog) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "CMD", Width: 5},
			{Title: "TAG", Width: 24},
			{Title: "VALUE", Width: 12},
		}),
		table.WithHeight(10),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()
	tbl.SetStyles(styles)

	m := monitorModel{
		connInfo:  connInfo,
		interval:  interval,
		cat:       cat,
		values:    make([]uint32, len(cat)),
		seen:      make([]bool, len(cat)),
		fresh:     make([]bool, len(cat)),
		degraded:  true,
		maxEvents: 100,
		spinner:   sp,
		table:     tbl,
		width:     80,
		height:    24,
	}
	m.table.SetRows(m.rows())
	return m
}

func (m monitorModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := m.height - 22 // header, status, stats and events
		if h < 5 {
			h = 5
		}
		m.table.SetHeight(h)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case gatewayMsg:
		m.apply(gateway.Update(msg))

	case gatewayDoneMsg:
		if msg.err != nil {
			m.linkErr = msg.err
			m.addEvent(fmt.Sprintf("Polling stopped: %v", msg.err), true)
		}
	}

	return m, nil
}

// apply folds one gateway update into the model.
func (m *monitorModel) apply(u gateway.Update) {
	m.state = u.State
	m.degraded = u.Degraded
	m.stats = u.Stats

	switch u.Kind {
	case gateway.UpdateTransmit:
		if u.Index == 0 {
			for i := range m.fresh {
				m.fresh[i] = false
			}
		}

	case gateway.UpdateAccepted:
		if u.Index < len(m.values) {
			m.values[u.Index] = u.Value
			m.seen[u.Index] = true
			m.fresh[u.Index] = true
		}

	case gateway.UpdateRejected:
		m.addEvent(fmt.Sprintf("%s: %v", u.Command, u.Err), true)

	case gateway.UpdateComplete:
		m.lastSweep = u.Time
		m.addEvent(fmt.Sprintf("Sweep complete (%d values)", len(u.Values)), false)

	case gateway.UpdateTimeout:
		m.addEvent(fmt.Sprintf("No reply for %s, sweep abandoned", u.Command), true)

	case gateway.UpdateSkipped:
		m.addEvent("Sweep still running, tick skipped", true)

	case gateway.UpdateReport:
		if u.Report != nil && u.Report.Health != report.HealthNone {
			m.health = u.Report.Health
			m.addEvent(fmt.Sprintf("Group reported %s", u.Report.Health), u.Report.Health == report.Unhealthy)
		}
	}

	m.table.SetRows(m.rows())
}

func (m *monitorModel) addEvent(message string, isError bool) {
	m.events = append(m.events, monitorEvent{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}

// rows renders the value table. Values never received show "-"; values
// not yet refreshed by the sweep in progress are marked with '*'.
func (m monitorModel) rows() []table.Row {
	rows := make([]table.Row, len(m.cat))
	for i, cmd := range m.cat {
		value := "-"
		if m.seen[i] {
			value = fmt.Sprintf("%d", m.values[i])
			if m.state.Phase == exchange.Awaiting && !m.fresh[i] {
				value += "*"
			}
		}
		rows[i] = table.Row{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%02X:%02X", cmd.High, cmd.Low),
			cmd.Tag,
			value,
		}
	}
	return rows
}

// phaseLine describes what the machine is doing.
func (m monitorModel) phaseLine() string {
	switch m.state.Phase {
	case exchange.Awaiting:
		i := m.state.Index
		return fmt.Sprintf("%s Awaiting %d/%d: %s", m.spinner.View(), i+1, len(m.cat), m.cat[i])
	case exchange.Done:
		return fmt.Sprintf("Idle, last sweep complete at %s", m.lastSweep.Format("15:04:05"))
	}
	return "Idle"
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("DELTAGATE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Interval: %s | Press 'q' to quit", m.connInfo, m.interval)))
	s.WriteString("\n\n")

	// Status
	s.WriteString(m.phaseLine())
	s.WriteString("   ")
	switch {
	case m.linkErr != nil:
		s.WriteString(errorStyle.Render("✗ Link down"))
	case m.degraded:
		s.WriteString(warningStyle.Render("⚠ Degraded"))
	default:
		s.WriteString(valueStyle.Render("✓ Healthy"))
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
	}

	stats := strings.Builder{}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Sweeps:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Sweeps)),
		labelStyle.Render("Complete:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.CompletedSweeps)),
		labelStyle.Render("Timed out:"), func() string {
			if m.stats.TimedOutSweeps > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.TimedOutSweeps))
			}
			return valueStyle.Render("0")
		}(),
	))
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%% valid)", m.stats.TotalFrames, validPercent)),
		labelStyle.Render("CRC:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRCErrors)),
		labelStyle.Render("Framing:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.FramingErrors)),
	))
	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	// Values
	s.WriteString(m.table.View())
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := 6
	log := strings.Builder{}
	start := len(m.events) - logHeight
	if start < 0 {
		start = 0
	}
	if len(m.events) == 0 {
		log.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.events[start:] {
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			log.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			log.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(log.String()))

	return s.String()
}
