// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/Thermoquad/deltagate/internal/gateway"
	"github.com/Thermoquad/deltagate/internal/logging"
	"github.com/Thermoquad/deltagate/internal/sink"
	"github.com/Thermoquad/deltagate/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	monitorPost bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll the inverter with a live dashboard",
	Long: `Poll the inverter like the run command and show a live dashboard of the
sweep in progress, the latest value of every catalog entry, frame statistics
and recent events.

Reports are only published with --post. Log output is suppressed while the
dashboard is shown; use --debug-udp to mirror it elsewhere.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorPost, "post", false, "Publish reports like the run command")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closer, err := logging.Setup(logging.Options{
		Level:    cfg.Log.Level,
		Format:   "json",
		DebugUDP: cfg.Log.DebugUDP,
	}, io.Discard)
	if err != nil {
		return err
	}
	defer closer.Close()

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	var (
		gate  *transport.Gate
		sinks []sink.Sink
	)
	if monitorPost {
		gate = newGate(cfg, logger)
		sinks, err = sink.FromConfig(cfg, logger)
		if err != nil {
			return err
		}
		defer sink.CloseAll(sinks)
	}

	gw, err := newGateway(cfg, conn, gate, sinks, logger)
	if err != nil {
		return err
	}

	m := newMonitorModel(connInfo, cfg.Poll.Interval, gw.Catalog())
	p := tea.NewProgram(m, tea.WithAltScreen())

	gw.Observe(func(u gateway.Update) {
		p.Send(gatewayMsg(u))
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Send(gatewayDoneMsg{err: gw.Run(ctx)})
	}()

	_, runErr := p.Run()
	cancel()
	<-done
	if gate != nil {
		gate.Wait()
	}

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
