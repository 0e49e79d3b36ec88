// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"fmt"

	"github.com/Thermoquad/deltagate/internal/config"
	"github.com/Thermoquad/deltagate/pkg/report"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

// pointWriter is the part of api.WriteAPIBlocking the sink uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes one point per report.
type Influx struct {
	client      influxdb2.Client
	writer      pointWriter
	measurement string
	group       string
	log         zerolog.Logger
}

// NewInflux creates a sink writing to cfg.Bucket. group tags every point.
func NewInflux(cfg config.InfluxConfig, group string, logger zerolog.Logger) (*Influx, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("influx url is empty")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		client:      client,
		writer:      client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		group:       group,
		log:         logger.With().Str("component", "influx").Logger(),
	}, nil
}

// Name implements Sink
func (s *Influx) Name() string {
	return "influx"
}

// Publish implements Sink
func (s *Influx) Publish(ctx context.Context, r *report.Report) error {
	if err := s.writer.WritePoint(ctx, Point(s.measurement, s.group, r)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close implements Sink
func (s *Influx) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Point converts r into a point with an integer field per tag and a
// boolean healthy field when the report carries a group status.
func Point(measurement, group string, r *report.Report) *write.Point {
	p := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("group", group).
		SetTime(r.At)

	for _, tv := range r.Tags {
		p.AddField(tv.Tag, int64(tv.Value))
	}
	if r.Health != report.HealthNone {
		p.AddField("healthy", r.Health == report.Healthy)
	}
	return p
}
