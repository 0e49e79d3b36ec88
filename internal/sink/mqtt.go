// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/deltagate/internal/config"
	"github.com/Thermoquad/deltagate/pkg/report"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const mqttPublishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes reports to <topic>/report.
type MQTT struct {
	client publisher
	conn   mqtt.Client
	cfg    config.MQTTConfig
	log    zerolog.Logger
}

// NewMQTT connects to the broker in cfg. The client reconnects on its own
// after a lost connection; availability is announced on <topic>/status.
func NewMQTT(cfg config.MQTTConfig, logger zerolog.Logger) (*MQTT, error) {
	log := logger.With().Str("component", "mqtt").Logger()
	status := cfg.Topic + "/status"

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetWill(status, "offline", 0, true).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOrderMatters(false)

	opts.OnConnect = func(client mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
		client.Publish(status, 0, true, "online")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	return &MQTT{client: c, conn: c, cfg: cfg, log: log}, nil
}

// Name implements Sink
func (m *MQTT) Name() string {
	return "mqtt"
}

// Topic returns the topic reports are published to.
func (m *MQTT) Topic() string {
	return m.cfg.Topic + "/report"
}

// Publish implements Sink
func (m *MQTT) Publish(ctx context.Context, r *report.Report) error {
	payload, err := m.encode(r)
	if err != nil {
		return err
	}

	token := m.client.Publish(m.Topic(), m.cfg.QoS, m.cfg.Retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("MQTT publish to %s timed out", m.Topic())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish to %s: %w", m.Topic(), err)
	}
	return nil
}

func (m *MQTT) encode(r *report.Report) ([]byte, error) {
	if m.cfg.Format == "cbor" {
		return r.CBOR()
	}
	buf, err := r.JSON()
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	return append([]byte(nil), buf.Bytes()...), nil
}

// Close implements Sink
func (m *MQTT) Close() error {
	if m.conn != nil && m.conn.IsConnected() {
		m.conn.Publish(m.cfg.Topic+"/status", 0, true, "offline").WaitTimeout(time.Second)
		m.conn.Disconnect(250)
	}
	return nil
}
