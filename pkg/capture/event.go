// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records bus traffic to CBOR capture files and reads it back.
//
// A capture file is a plain concatenation of CBOR encoded Events. Each event
// is one decoded word, one transaction grouped by the monitor, or one decode
// error.
package capture

import (
	"time"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/google/uuid"
)

// Event is a single record of a capture file.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event was observed (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the capture session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Bus the traffic was seen on.
	Bus Bus `cbor:"3,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"4,keyasint"`

	// Raw is the 20-bit packet for word and error events.
	Raw uint32 `cbor:"5,keyasint,omitempty"`

	// Words of a transaction in bus order.
	Words []mil1553.Word `cbor:"6,keyasint,omitempty"`

	// Direction and Type of a transaction.
	Direction mil1553.MessageDirection `cbor:"7,keyasint,omitempty"`
	Type      mil1553.MessageType      `cbor:"8,keyasint,omitempty"`

	// Address is the terminal addressed by the first command word.
	Address *uint8 `cbor:"9,keyasint,omitempty"`

	// Error is the decode or topology error, if any.
	Error string `cbor:"10,keyasint,omitempty"`

	// Anomalies lists validator findings for a transaction.
	Anomalies []string `cbor:"11,keyasint,omitempty"`
}

// Kind classifies an event.
type Kind uint8

const (
	// KindWord is a single decoded word.
	KindWord Kind = 0
	// KindTransaction is a transaction grouped by the monitor.
	KindTransaction Kind = 1
	// KindError is a packet that failed to decode.
	KindError Kind = 2
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindWord:
		return "WORD"
	case KindTransaction:
		return "TRANSACTION"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Bus is one of the two redundant buses.
type Bus uint8

const (
	BusA Bus = 0
	BusB Bus = 1
)

// String returns the bus name.
func (b Bus) String() string {
	switch b {
	case BusA:
		return "A"
	case BusB:
		return "B"
	default:
		return "?"
	}
}

// NewSessionID returns a fresh random session identifier
func NewSessionID() string {
	return uuid.NewString()
}

// PackRaw folds a packet into its 20-bit wire value
func PackRaw(p mil1553.Packet) uint32 {
	return uint32(p.Sync())<<17 | uint32(p.Value())<<1 | uint32(p.ParityBit())
}

// UnpackRaw is the inverse of PackRaw
func UnpackRaw(raw uint32) mil1553.Packet {
	return mil1553.NewPacket(uint8(raw>>17&0x7), uint16(raw>>1), uint8(raw&1))
}

// Packet returns the packet of a word or error event
func (e Event) Packet() mil1553.Packet {
	return UnpackRaw(e.Raw)
}

// NewWordEvent records a decoded packet
func NewWordEvent(session string, bus Bus, p mil1553.Packet) Event {
	return Event{
		Timestamp: time.Now(),
		SessionID: session,
		Bus:       bus,
		Kind:      KindWord,
		Raw:       PackRaw(p),
	}
}

// NewErrorEvent records a decode error; p may be nil when no packet is known
func NewErrorEvent(session string, bus Bus, p *mil1553.Packet, err error) Event {
	e := Event{
		Timestamp: time.Now(),
		SessionID: session,
		Bus:       bus,
		Kind:      KindError,
	}
	if p != nil {
		e.Raw = PackRaw(*p)
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// NewTransactionEvent records a transaction and its validation findings
func NewTransactionEvent(session string, bus Bus, t *mil1553.Transaction, anomalies []mil1553.ValidationError) Event {
	e := Event{
		Timestamp: t.Timestamp,
		SessionID: session,
		Bus:       bus,
		Kind:      KindTransaction,
		Words:     t.Words(),
		Direction: t.Direction,
		Type:      t.Type,
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if cmd, ok := t.Command(); ok {
		rt := uint8(cmd.Address())
		e.Address = &rt
	}
	if t.Err != nil {
		e.Error = t.Err.Error()
	}
	for _, a := range anomalies {
		e.Anomalies = append(e.Anomalies, a.Type.String()+": "+a.Message)
	}
	return e
}
