// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/deltagate/internal/gateway"
	"github.com/Thermoquad/deltagate/internal/sink"
	"github.com/Thermoquad/deltagate/internal/transport"
	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/spf13/cobra"
)

var (
	pollPost bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one sweep and print the values",
	Long: `Run a single sweep over the command catalog and print every value.

With --post the report is also sent to the tagwriter endpoint and any
configured sinks, exactly as the run command would.

Exit codes:
  0 - Sweep completed
  1 - An entry timed out
  2 - Connection error`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().BoolVar(&pollPost, "post", false, "Publish the report like the run command")
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closer, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	var (
		gate  *transport.Gate
		sinks []sink.Sink
	)
	if pollPost {
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
	cat := gw.Catalog()

	fmt.Printf("Deltagate - Poll\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Catalog: %d entries, %s response timeout\n\n", len(cat), cfg.Poll.ResponseTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := gw.RunOnce(ctx)
	if gate != nil {
		gate.Wait()
	}
	if err != nil {
		if code := pollExitCode(out, err); code != 0 {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(code)
		}
		fmt.Fprintln(os.Stderr, "Interrupted")
		return nil
	}

	fmt.Print(formatOutcome(out, cat))
	if code := pollExitCode(out, nil); code != 0 {
		fmt.Fprintf(os.Stderr, "TIMEOUT: no valid reply for %s\n", cat[out.TimedOut])
		os.Exit(code)
	}
	return nil
}

// pollExitCode maps a sweep result to the documented exit codes. A sweep
// interrupted by the user is not a failure.
func pollExitCode(out *gateway.Outcome, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 0
	case err != nil:
		return 2
	case out == nil || !out.Completed:
		return 1
	}
	return 0
}

// formatOutcome renders the result table. Entries from a timed-out entry
// onwards were not refreshed and are marked as such.
func formatOutcome(out *gateway.Outcome, cat delta.Catalog) string {
	result := fmt.Sprintf("%-4s %-6s %-28s %12s\n", "#", "CMD", "TAG", "VALUE")
	for i, cmd := range cat {
		value := fmt.Sprintf("%d", out.Values[i])
		if !out.Completed && i >= out.TimedOut {
			value = "-"
		}
		result += fmt.Sprintf("%-4d %02X:%02X  %-28s %12s\n", i, cmd.High, cmd.Low, cmd.Tag, value)
	}
	return result
}
