// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mil1553 implements the MIL-STD-1553B word format and message rules.
//
// A 1553 word is 20 bits on the wire: a 3-bit sync pattern, a 16-bit body and
// an odd parity bit. Words are packed back to back with no byte alignment.
// This package reads and writes those words at arbitrary bit offsets,
// decodes the command, status and data word fields, and assembles words
// into messages according to the six message formats of the standard.
package mil1553

// Sync patterns (3 bits, transmitted before the body)
const (
	SyncData    = 0b001 // data words
	SyncService = 0b100 // command and status words
)

// Word framing
const (
	WordBits   = 20 // sync + body + parity
	SyncBits   = 3
	BodyBits   = 16
	ParityBits = 1

	// MaxBitOffset is the largest offset a 20-bit word can start at inside
	// a 4-byte window.
	MaxBitOffset = 12
)

// Message limits
const (
	// MaxWords is one leading command or status word plus 32 data words.
	MaxWords = 33

	// MaxDataWords is the largest word count a command can request.
	MaxDataWords = 32
)

// Special terminal values
const (
	BroadcastAddress   = 0b11111
	ModeCodeSubaddress = 0b00000
	ModeCodeAltSubaddr = 0b11111
)

// Command word fields
const (
	CommandAddressMask   = 0b1111100000000000
	CommandTRMask        = 0b0000010000000000
	CommandSubaddrMask   = 0b0000001111100000
	CommandWordCountMask = 0b0000000000011111
	CommandModeCodeMask  = CommandWordCountMask
)

// Status word fields
const (
	StatusAddressMask           = 0b1111100000000000
	StatusMessageErrorMask      = 0b0000010000000000
	StatusInstrumentationMask   = 0b0000001000000000
	StatusServiceRequestMask    = 0b0000000100000000
	StatusReservedMask          = 0b0000000011100000
	StatusBroadcastReceivedMask = 0b0000000000010000
	StatusBusyMask              = 0b0000000000001000
	StatusSubsystemFlagMask     = 0b0000000000000100
	StatusBusControlAcceptMask  = 0b0000000000000010
	StatusTerminalFlagMask      = 0b0000000000000001
)

// Decoder states (internal)
const (
	stateHunting = iota
	stateLocked
)
