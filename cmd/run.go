// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/deltagate/internal/config"
	"github.com/Thermoquad/deltagate/internal/gateway"
	"github.com/Thermoquad/deltagate/internal/sink"
	"github.com/Thermoquad/deltagate/internal/transport"
	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/Thermoquad/deltagate/pkg/exchange"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the inverter and publish reports",
	Long: `Poll the inverter on a fixed interval until interrupted.

Each completed sweep is posted to the tagwriter endpoint as a tag report, and
published to MQTT and InfluxDB when those sinks are configured. A sweep that
times out is reported as an unhealthy group status.

Statistics are logged periodically and printed on exit.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
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
		return err
	}
	defer conn.Close()
	logger.Info().Str("link", connInfo).Msg("connected")

	sinks, err := sink.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer sink.CloseAll(sinks)

	gate := newGate(cfg, logger)
	if gate != nil {
		logger.Info().Str("endpoint", gate.Endpoint()).Msg("tagwriter enabled")
	} else {
		logger.Info().Msg("tagwriter disabled")
	}
	gw, err := newGateway(cfg, conn, gate, sinks, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = gw.Run(ctx)
	if gate != nil {
		gate.Wait()
		st := gate.Stats()
		logger.Info().
			Uint64("posted", st.Posted).
			Uint64("delivered", st.Delivered).
			Uint64("failed", st.Failed).
			Msg("tagwriter totals")
	}

	stats := gw.Stats()
	fmt.Fprint(os.Stderr, "\n"+stats.String())
	return err
}

// newGate returns the tagwriter transport, or nil when it is disabled.
func newGate(cfg *config.Config, logger zerolog.Logger) *transport.Gate {
	if !cfg.TagWriter.Enabled {
		return nil
	}
	return transport.NewGate(transport.Config{
		Endpoint:    cfg.TagWriter.Endpoint,
		Path:        cfg.TagWriter.Path,
		DialTimeout: cfg.TagWriter.DialTimeout,
		IOTimeout:   cfg.TagWriter.IOTimeout,
	}, logger)
}

// catalogFor returns the catalog named in the configuration.
func catalogFor(cfg *config.Config) delta.Catalog {
	if cfg.Inverter.Catalog == "extended" {
		return delta.ExtendedCatalog()
	}
	return delta.DefaultCatalog()
}

func gatewayOptions(cfg *config.Config, cat delta.Catalog) gateway.Options {
	return gateway.Options{
		Catalog: cat,
		Exchange: exchange.Config{
			Address:         cfg.Inverter.Address,
			GatewayAddress:  cfg.Inverter.GatewayAddress,
			ChainID:         cfg.Inverter.ChainID,
			ResponseTimeout: cfg.Poll.ResponseTimeout,
		},
		Interval:      cfg.Poll.Interval,
		SweepOnStart:  cfg.Poll.SweepOnStart,
		TxLeadDelay:   cfg.Poll.TxLeadDelay,
		TxTailDelay:   cfg.Poll.TxTailDelay,
		Group:         cfg.TagWriter.Group,
		StatsInterval: cfg.Poll.StatsInterval,
	}
}

func newGateway(cfg *config.Config, conn Connection, gate *transport.Gate, sinks []sink.Sink, logger zerolog.Logger) (*gateway.Gateway, error) {
	var poster gateway.Poster
	if gate != nil {
		poster = gate
	}
	return gateway.New(conn, poster, sinks, gatewayOptions(cfg, catalogFor(cfg)), logger)
}
