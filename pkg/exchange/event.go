// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package exchange

import (
	"fmt"
	"time"

	"github.com/Thermoquad/deltagate/pkg/delta"
)

// Phase is the coarse state of a sweep.
type Phase int

const (
	Idle     Phase = iota // no sweep running, waiting for a tick
	Awaiting              // request sent, collecting the reply
	Done                  // last sweep completed
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Awaiting:
		return "awaiting"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the machine's position. Index is only meaningful while Awaiting.
type State struct {
	Phase Phase
	Index int
}

// String returns e.g. "awaiting(3)"
func (s State) String() string {
	if s.Phase == Awaiting {
		return fmt.Sprintf("awaiting(%d)", s.Index)
	}
	return s.Phase.String()
}

// EventKind identifies an input to the machine.
type EventKind int

const (
	EventSweepTick EventKind = iota
	EventByte
	EventTimeout
)

// Event is one input to Machine.Handle.
type Event struct {
	Kind EventKind
	Byte byte
}

// SweepTick requests the start of a new sweep.
func SweepTick() Event { return Event{Kind: EventSweepTick} }

// ByteReceived carries one byte read from the serial link.
func ByteReceived(b byte) Event { return Event{Kind: EventByte, Byte: b} }

// Timeout signals that the response timer expired.
func Timeout() Event { return Event{Kind: EventTimeout} }

// Effect is an action the caller must perform after a transition. Effects
// are returned in the order they must be carried out.
type Effect interface {
	effect()
}

// Transmit asks for Frame to be written to the serial link.
type Transmit struct {
	Index   int
	Command delta.Command
	Frame   []byte
}

// ArmTimeout (re)starts the response timer.
type ArmTimeout struct {
	After time.Duration
}

// DisarmTimeout stops the response timer.
type DisarmTimeout struct{}

// Accepted reports a validated reply stored at Index.
type Accepted struct {
	Index int
	Reply *delta.Reply
}

// Rejected reports a reply that failed validation. The machine keeps
// waiting for the same entry.
type Rejected struct {
	Index int
	Err   error
}

// SweepComplete carries the full result table. Recovered is set when the
// previous sweep ended in a timeout.
type SweepComplete struct {
	Values    []uint32
	Recovered bool
}

// SweepTimedOut reports that the entry at Index never got a valid reply.
type SweepTimedOut struct {
	Index int
}

// SweepSkipped reports a tick that arrived while a sweep was running.
type SweepSkipped struct {
	State State
}

func (Transmit) effect()      {}
func (ArmTimeout) effect()    {}
func (DisarmTimeout) effect() {}
func (Accepted) effect()      {}
func (Rejected) effect()      {}
func (SweepComplete) effect() {}
func (SweepTimedOut) effect() {}
func (SweepSkipped) effect()  {}
