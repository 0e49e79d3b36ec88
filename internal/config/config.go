// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the gateway configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Inverter  InverterConfig  `yaml:"inverter"`
	Poll      PollConfig      `yaml:"poll"`
	TagWriter TagWriterConfig `yaml:"tagwriter"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Influx    InfluxConfig    `yaml:"influx"`
	Log       LogConfig       `yaml:"log"`
}

// ---- LINK ----

type SerialConfig struct {
	Port     string `yaml:"port"`
	Baud     int    `yaml:"baud"`
	TxEnable string `yaml:"tx_enable"` // rts, dtr or none
}

// BridgeConfig selects a WebSocket serial bridge instead of a local port.
type BridgeConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// ---- INVERTER ----

type InverterConfig struct {
	Address        uint8  `yaml:"address"`
	GatewayAddress uint8  `yaml:"gateway_address"`
	ChainID        uint8  `yaml:"chain_id"`
	Catalog        string `yaml:"catalog"` // default or extended
}

// ---- POLL ----

type PollConfig struct {
	Interval        time.Duration `yaml:"interval"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	SweepOnStart    bool          `yaml:"sweep_on_start"`
	TxLeadDelay     time.Duration `yaml:"tx_lead_delay"`
	TxTailDelay     time.Duration `yaml:"tx_tail_delay"`
	StatsInterval   time.Duration `yaml:"stats_interval"`
}

// ---- SINKS ----

type TagWriterConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoint    string        `yaml:"endpoint"`
	Path        string        `yaml:"path"`
	Group       string        `yaml:"group"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	IOTimeout   time.Duration `yaml:"io_timeout"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables the sink
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	Format   string `yaml:"format"` // json or cbor
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

type InfluxConfig struct {
	URL         string `yaml:"url"` // empty disables the sink
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`    // console or json
	DebugUDP string `yaml:"debug_udp"` // host[:port] to mirror log lines to
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:     19200,
			TxEnable: "rts",
		},
		Inverter: InverterConfig{
			Address:        0x05,
			GatewayAddress: 0x06,
			ChainID:        0x01,
			Catalog:        "default",
		},
		Poll: PollConfig{
			Interval:        60 * time.Second,
			ResponseTimeout: 10 * time.Second,
			SweepOnStart:    true,
			TxLeadDelay:     100 * time.Microsecond,
			TxTailDelay:     time.Millisecond,
			StatsInterval:   15 * time.Minute,
		},
		TagWriter: TagWriterConfig{
			Enabled:     true,
			Endpoint:    "10.0.1.48:8074",
			Path:        "/tagwriter",
			Group:       "2",
			DialTimeout: 5 * time.Second,
			IOTimeout:   10 * time.Second,
		},
		MQTT: MQTTConfig{
			ClientID: "deltagate",
			Topic:    "deltagate",
			Format:   "json",
		},
		Influx: InfluxConfig{
			Measurement: "delta_inverter",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// UsesBridge reports whether the link is a WebSocket bridge.
func (c *Config) UsesBridge() bool {
	return c.Bridge.URL != ""
}
