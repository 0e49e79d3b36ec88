// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink forwards sweep reports to optional secondary destinations.
// Sink failures never affect polling; callers log them and carry on.
package sink

import (
	"context"
	"errors"

	"github.com/Thermoquad/deltagate/internal/config"
	"github.com/Thermoquad/deltagate/pkg/report"
	"github.com/rs/zerolog"
)

// Sink receives every report the gateway produces.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r *report.Report) error
	Close() error
}

// FromConfig opens every sink enabled in cfg. Sinks opened before a failure
// are closed again.
func FromConfig(cfg *config.Config, logger zerolog.Logger) ([]Sink, error) {
	var sinks []Sink

	if cfg.MQTT.Broker != "" {
		s, err := NewMQTT(cfg.MQTT, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	if cfg.Influx.URL != "" {
		s, err := NewInflux(cfg.Influx, cfg.TagWriter.Group, logger)
		if err != nil {
			CloseAll(sinks)
			return nil, err
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

// CloseAll closes every sink and joins their errors.
func CloseAll(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
