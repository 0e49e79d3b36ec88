// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging configures the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the logger output.
type Options struct {
	Level    string // trace, debug, info, warn, error
	Format   string // console or json
	DebugUDP string // optional host[:port] mirror
}

// Setup builds the root logger, installs it as the zerolog global and
// returns a closer for the debug mirror. out defaults to stderr.
func Setup(opts Options, out io.Writer) (zerolog.Logger, io.Closer, error) {
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	var primary io.Writer = out
	if opts.Format != "json" {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	writer := primary
	var closer io.Closer = nopCloser{}
	if opts.DebugUDP != "" {
		udp, err := DialUDP(opts.DebugUDP)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		mirror := zerolog.ConsoleWriter{Out: udp, NoColor: true, TimeFormat: time.TimeOnly}
		writer = zerolog.MultiLevelWriter(primary, mirror)
		closer = udp
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

// Component derives a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
