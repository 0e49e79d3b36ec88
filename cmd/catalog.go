// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/spf13/cobra"
)

var (
	catalogAll bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the polled commands",
	Long: `List the command catalog in sweep order with the request frame sent for
each entry.

By default the configured catalog is shown; --all lists every known command.`,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().BoolVar(&catalogAll, "all", false, "List every known command")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cat := catalogFor(cfg)
	if catalogAll {
		cat = delta.ExtendedCatalog()
	}
	enc := &delta.Encoder{Address: cfg.Inverter.Address, ChainID: cfg.Inverter.ChainID}

	fmt.Printf("Catalog: %d entries, inverter 0x%02X, chain 0x%02X\n\n", len(cat), cfg.Inverter.Address, cfg.Inverter.ChainID)
	fmt.Print(delta.FormatCatalog(cat, enc))
	return nil
}
