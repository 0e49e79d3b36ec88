// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Deltagate - Delta inverter polling gateway
//
// Polls a Delta solar inverter over RS-485 and forwards every sweep to a
// tagwriter endpoint, MQTT and InfluxDB.

package main

import (
	"os"

	"github.com/Thermoquad/deltagate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
