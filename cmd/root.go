// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"
	"os"

	"github.com/Thermoquad/deltagate/internal/config"
	"github.com/Thermoquad/deltagate/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Logging flags
	logLevel string
	debugUDP string
)

var rootCmd = &cobra.Command{
	Use:   "deltagate",
	Short: "Delta inverter polling gateway",
	Long: `Deltagate - Polls a Delta solar inverter over its RS-485 service port and
forwards the readings to a tagwriter endpoint, MQTT and InfluxDB.

Every sweep walks the command catalog one request at a time. A completed
sweep is posted as a tag report; a sweep that times out is posted as an
unhealthy group status instead.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 19200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from --config (YAML); flags override the file.

For WebSocket authentication, the password is read from the DELTAGATE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (YAML)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 19200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&debugUDP, "debug-udp", "", "Mirror log lines to host[:port] over UDP")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config and applies the connection and logging flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Bridge.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Bridge.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Bridge.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("debug-udp") {
		cfg.Log.DebugUDP = debugUDP
	}

	return cfg, cfg.Validate()
}

// setupLogger builds the process logger on stderr so stdout stays free for
// command output.
func setupLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	return logging.Setup(logging.Options{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		DebugUDP: cfg.Log.DebugUDP,
	}, os.Stderr)
}
