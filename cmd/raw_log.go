// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/spf13/cobra"
)

var (
	rawLogHex bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display bus traffic in human-readable format",
	Long: `Passively decode and display every Delta frame seen on the bus.

Requests and replies are both shown, with the command labelled from the
extended catalog and reply values decoded. Nothing is transmitted, so this
can run alongside another poller.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print the raw bytes of every frame")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Deltagate - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	cat := delta.ExtendedCatalog()
	scanner := delta.NewScanner()
	stats := delta.NewStatistics()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	var stopping atomic.Bool
	go func() {
		<-sigChan
		stopping.Store(true)
		conn.Close()
	}()

	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			frame, decodeErr := scanner.DecodeByte(buf[i])
			if decodeErr != nil {
				stats.Update(decodeErr)
				fmt.Printf("[ERROR] %v\n", decodeErr)
				continue
			}
			if frame != nil {
				stats.Update(nil)
				fmt.Print(delta.FormatFrame(frame, cat))
				if rawLogHex {
					fmt.Printf("        %s\n", delta.FormatHex(frame.Raw))
				}
			}
		}

		if err != nil {
			fmt.Print("\n" + stats.String())
			if stopping.Load() || errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}
