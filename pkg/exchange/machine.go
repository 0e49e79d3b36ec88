// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package exchange drives one polling sweep over a command catalog.
//
// Machine is a pure transition function: it consumes events (sweep ticks,
// received bytes, timeouts) and returns the effects the caller must carry
// out (transmit a frame, arm or disarm the response timer, publish the
// result). It performs no I/O and starts no goroutines, so the caller owns
// scheduling and the machine can be driven deterministically in tests.
package exchange

import (
	"fmt"
	"time"

	"github.com/Thermoquad/deltagate/pkg/delta"
)

// DefaultResponseTimeout is how long the machine waits for each reply.
const DefaultResponseTimeout = 10 * time.Second

// Config holds the bus addressing and timing for a Machine.
type Config struct {
	Address         byte // inverter address requests are sent to
	GatewayAddress  byte // address replies must carry
	ChainID         byte
	ResponseTimeout time.Duration
}

// DefaultConfig returns the addressing used by a single inverter on the
// chain.
func DefaultConfig() Config {
	return Config{
		Address:         delta.InverterAddress,
		GatewayAddress:  delta.GatewayAddress,
		ChainID:         delta.ChainID,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// Machine walks a catalog one request at a time.
type Machine struct {
	cat       delta.Catalog
	cfg       Config
	encoder   *delta.Encoder
	validator *delta.Validator

	state    State
	acc      accumulator
	values   []uint32
	degraded bool
}

// New creates a machine for cat. The machine starts Idle and degraded, so
// the first completed sweep is reported as a recovery.
func New(cat delta.Catalog, cfg Config) (*Machine, error) {
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}

	return &Machine{
		cat:       cat,
		cfg:       cfg,
		encoder:   &delta.Encoder{Address: cfg.Address, ChainID: cfg.ChainID},
		validator: &delta.Validator{Address: cfg.GatewayAddress, ChainID: cfg.ChainID},
		state:     State{Phase: Idle},
		values:    make([]uint32, len(cat)),
		degraded:  true,
	}, nil
}

// Catalog returns the catalog the machine polls.
func (m *Machine) Catalog() delta.Catalog {
	return m.cat
}

// State returns the current position.
func (m *Machine) State() State {
	return m.state
}

// Degraded reports whether the last sweep ended in a timeout.
func (m *Machine) Degraded() bool {
	return m.degraded
}

// Values returns a copy of the result table. Entries not refreshed by the
// current sweep still hold the previous sweep's values.
func (m *Machine) Values() []uint32 {
	return append([]uint32(nil), m.values...)
}

// Pending returns the reply bytes accumulated for the current entry.
func (m *Machine) Pending() []byte {
	return append([]byte(nil), m.acc.bytes()...)
}

// Dropped returns how many bytes overflowed the receive buffer.
func (m *Machine) Dropped() int {
	return m.acc.dropped
}

// Handle applies ev and returns the resulting effects.
func (m *Machine) Handle(ev Event) []Effect {
	switch ev.Kind {
	case EventSweepTick:
		return m.handleTick()
	case EventByte:
		return m.handleByte(ev.Byte)
	case EventTimeout:
		return m.handleTimeout()
	default:
		return nil
	}
}

func (m *Machine) handleTick() []Effect {
	if m.state.Phase == Awaiting {
		return []Effect{SweepSkipped{State: m.state}}
	}
	return m.request(0, nil)
}

func (m *Machine) handleByte(b byte) []Effect {
	// Late replies after a timeout or a completed sweep are drained here.
	if m.state.Phase != Awaiting {
		return nil
	}

	m.acc.push(b)
	cmd := m.cat[m.state.Index]
	if m.acc.len() < cmd.FrameLength() {
		return nil
	}

	index := m.state.Index
	reply, err := m.validator.Validate(m.acc.bytes(), cmd)
	m.acc.reset()
	if err != nil {
		return []Effect{Rejected{Index: index, Err: err}}
	}

	m.values[index] = reply.Value
	effects := []Effect{DisarmTimeout{}, Accepted{Index: index, Reply: reply}}

	if index+1 < len(m.cat) {
		return m.request(index+1, effects)
	}

	recovered := m.degraded
	m.degraded = false
	m.state = State{Phase: Done}
	return append(effects, SweepComplete{
		Values:    m.Values(),
		Recovered: recovered,
	})
}

func (m *Machine) handleTimeout() []Effect {
	if m.state.Phase != Awaiting {
		return nil
	}
	index := m.state.Index
	m.degraded = true
	m.acc.reset()
	m.state = State{Phase: Idle}
	return []Effect{SweepTimedOut{Index: index}}
}

// request moves to entry i and appends its transmit and timer effects.
func (m *Machine) request(i int, effects []Effect) []Effect {
	cmd := m.cat[i]
	m.acc.reset()
	m.state = State{Phase: Awaiting, Index: i}
	return append(effects,
		Transmit{Index: i, Command: cmd, Frame: m.encoder.Encode(cmd)},
		ArmTimeout{After: m.cfg.ResponseTimeout},
	)
}
