// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import "errors"

// Framing errors
var (
	// ErrOutOfBounds is returned when a bit offset or buffer is too short
	// for the requested read or write.
	ErrOutOfBounds = errors.New("mil1553: out of bounds")
)

// Integrity errors
var (
	// ErrReservedUsed is returned when a packet fails its sync or parity
	// check before it is interpreted as a word.
	ErrReservedUsed = errors.New("mil1553: invalid packet (reserved sync or parity)")
)

// Word validity errors
var (
	ErrInvalidWord     = errors.New("mil1553: word parity mismatch")
	ErrWordIsInvalid   = errors.New("mil1553: word is invalid")
	ErrPacketIsInvalid = errors.New("mil1553: packet sync does not match word kind")
)

// Topology errors
var (
	ErrMessageBad          = errors.New("mil1553: word not allowed here")
	ErrMessageFull         = errors.New("mil1553: message is full")
	ErrFirstWordIsData     = errors.New("mil1553: first word is a data word")
	ErrCommandWordNotFirst = errors.New("mil1553: command word is not first")
	ErrStatusWordNotFirst  = errors.New("mil1553: status word is not first")
)

// Semantic errors
var (
	ErrNotModeCode = errors.New("mil1553: command is not a mode code")
	ErrInvalidCode = errors.New("mil1553: mode code out of range")
)

// ErrUnknownMessage is returned for a message format and side that has no
// defined transitions.
var ErrUnknownMessage = errors.New("mil1553: unknown message format")

// IsFramingError reports whether err came from bit-level framing.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrOutOfBounds)
}

// IsIntegrityError reports whether err is a sync, parity or reserved-bit failure.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrReservedUsed) ||
		errors.Is(err, ErrInvalidWord) ||
		errors.Is(err, ErrWordIsInvalid) ||
		errors.Is(err, ErrPacketIsInvalid)
}

// IsTopologyError reports whether err was raised by the message state machine
// for a word in the wrong position.
func IsTopologyError(err error) bool {
	return errors.Is(err, ErrMessageBad) ||
		errors.Is(err, ErrMessageFull) ||
		errors.Is(err, ErrFirstWordIsData) ||
		errors.Is(err, ErrCommandWordNotFirst) ||
		errors.Is(err, ErrStatusWordNotFirst) ||
		errors.Is(err, ErrUnknownMessage)
}
