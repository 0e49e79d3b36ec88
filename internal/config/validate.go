// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks configuration correctness. It does not mutate c and does
// not require a link to be configured; commands that open one check that
// themselves.
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	switch c.Serial.TxEnable {
	case "rts", "dtr", "none":
	default:
		return fmt.Errorf("serial.tx_enable must be rts, dtr or none, got %q", c.Serial.TxEnable)
	}

	if c.Inverter.Address == c.Inverter.GatewayAddress {
		return fmt.Errorf("inverter.address and inverter.gateway_address must differ (both 0x%02X)", c.Inverter.Address)
	}
	switch c.Inverter.Catalog {
	case "default", "extended":
	default:
		return fmt.Errorf("inverter.catalog must be default or extended, got %q", c.Inverter.Catalog)
	}

	// ------------------------------------------------------------
	// TIMING
	// ------------------------------------------------------------

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Poll.ResponseTimeout <= 0 {
		return fmt.Errorf("poll.response_timeout must be positive")
	}
	if c.Poll.TxLeadDelay < 0 || c.Poll.TxTailDelay < 0 {
		return fmt.Errorf("poll tx delays must not be negative")
	}

	// ------------------------------------------------------------
	// SINKS
	// ------------------------------------------------------------

	if c.TagWriter.Enabled {
		if _, _, err := net.SplitHostPort(c.TagWriter.Endpoint); err != nil {
			return fmt.Errorf("tagwriter.endpoint: %w", err)
		}
		if !strings.HasPrefix(c.TagWriter.Path, "/") {
			return fmt.Errorf("tagwriter.path must start with '/', got %q", c.TagWriter.Path)
		}
		if c.TagWriter.Group == "" || strings.ContainsAny(c.TagWriter.Group, "\"\\") {
			return fmt.Errorf("tagwriter.group %q is not a valid group name", c.TagWriter.Group)
		}
	}

	if c.MQTT.Broker != "" {
		switch c.MQTT.Format {
		case "json", "cbor":
		default:
			return fmt.Errorf("mqtt.format must be json or cbor, got %q", c.MQTT.Format)
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic must not be empty")
		}
	}

	if c.Influx.URL != "" {
		if c.Influx.Bucket == "" || c.Influx.Org == "" {
			return fmt.Errorf("influx.org and influx.bucket are required when influx.url is set")
		}
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	return nil
}
